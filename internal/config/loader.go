package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FOOTPRINTD_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FOOTPRINTD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.URL, "FOOTPRINTD_FEED_URL")
	setStr(&cfg.Feed.Symbol, "FOOTPRINTD_FEED_SYMBOL")
	setStr(&cfg.Feed.DepthSpeed, "FOOTPRINTD_FEED_DEPTH_SPEED")
	setDuration(&cfg.Feed.HeartbeatInterval, "FOOTPRINTD_FEED_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Feed.ReconnectFloor, "FOOTPRINTD_FEED_RECONNECT_FLOOR")
	setDuration(&cfg.Feed.ReconnectCeiling, "FOOTPRINTD_FEED_RECONNECT_CEILING")

	// ── Window ──
	setDuration(&cfg.Window.Granularity, "FOOTPRINTD_WINDOW_GRANULARITY")
	setFloat64(&cfg.Window.Tick, "FOOTPRINTD_WINDOW_TICK")
	setInt(&cfg.Window.History, "FOOTPRINTD_WINDOW_HISTORY")

	// ── Signal ──
	setInt(&cfg.Signal.RunLength, "FOOTPRINTD_SIGNAL_RUN_LENGTH")
	setFloat64(&cfg.Signal.ImbalanceRatio, "FOOTPRINTD_SIGNAL_IMBALANCE_RATIO")
	setFloat64(&cfg.Signal.VolumeShare, "FOOTPRINTD_SIGNAL_VOLUME_SHARE")
	setFloat64(&cfg.Signal.MergeRange, "FOOTPRINTD_SIGNAL_MERGE_RANGE")
	setFloat64(&cfg.Signal.Proximity, "FOOTPRINTD_SIGNAL_PROXIMITY")
	setFloat64(&cfg.Signal.ReversalRatio, "FOOTPRINTD_SIGNAL_REVERSAL_RATIO")
	setDuration(&cfg.Signal.ImbalanceTail, "FOOTPRINTD_SIGNAL_IMBALANCE_TAIL")
	setStr(&cfg.Signal.Channel, "FOOTPRINTD_SIGNAL_CHANNEL")
	setStr(&cfg.Signal.Stream, "FOOTPRINTD_SIGNAL_STREAM")

	// ── Book ──
	setFloat64(&cfg.Book.PruneRange, "FOOTPRINTD_BOOK_PRUNE_RANGE")
	setDuration(&cfg.Book.PruneInterval, "FOOTPRINTD_BOOK_PRUNE_INTERVAL")
	setDuration(&cfg.Book.RefreshInterval, "FOOTPRINTD_BOOK_REFRESH_INTERVAL")

	// ── Persist ──
	setInt(&cfg.Persist.QueueSize, "FOOTPRINTD_PERSIST_QUEUE_SIZE")
	setInt(&cfg.Persist.MaxRetries, "FOOTPRINTD_PERSIST_MAX_RETRIES")
	setDuration(&cfg.Persist.RetryDelay, "FOOTPRINTD_PERSIST_RETRY_DELAY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FOOTPRINTD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FOOTPRINTD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FOOTPRINTD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FOOTPRINTD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FOOTPRINTD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FOOTPRINTD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FOOTPRINTD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FOOTPRINTD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FOOTPRINTD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FOOTPRINTD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FOOTPRINTD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FOOTPRINTD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FOOTPRINTD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FOOTPRINTD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FOOTPRINTD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FOOTPRINTD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FOOTPRINTD_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SnapshotTTL, "FOOTPRINTD_REDIS_SNAPSHOT_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "FOOTPRINTD_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FOOTPRINTD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FOOTPRINTD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FOOTPRINTD_S3_REGION")
	setStr(&cfg.S3.Bucket, "FOOTPRINTD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FOOTPRINTD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FOOTPRINTD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FOOTPRINTD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FOOTPRINTD_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.RetentionMaxAge, "FOOTPRINTD_S3_RETENTION_MAX_AGE")
	setDuration(&cfg.S3.RetentionInterval, "FOOTPRINTD_S3_RETENTION_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FOOTPRINTD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FOOTPRINTD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FOOTPRINTD_NOTIFY_DISCORD_WEBHOOK_URL")
	setDuration(&cfg.Notify.Cooldown, "FOOTPRINTD_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "FOOTPRINTD_MODE")
	setStr(&cfg.LogLevel, "FOOTPRINTD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
