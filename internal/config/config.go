// Package config defines the footprintd configuration and its validation
// helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FOOTPRINTD_* environment
// variables.
type Config struct {
	Feed     FeedConfig     `toml:"feed"`
	Window   WindowConfig   `toml:"window"`
	Signal   SignalConfig   `toml:"signal"`
	Book     BookConfig     `toml:"book"`
	Persist  PersistConfig  `toml:"persist"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// FeedConfig holds the exchange stream parameters and connection
// supervision knobs.
type FeedConfig struct {
	URL               string   `toml:"url"`
	Symbol            string   `toml:"symbol"`
	DepthSpeed        string   `toml:"depth_speed"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	ReconnectFloor    duration `toml:"reconnect_floor"`
	ReconnectCeiling  duration `toml:"reconnect_ceiling"`
}

// WindowConfig holds the footprint aggregation parameters.
type WindowConfig struct {
	Granularity duration `toml:"granularity"`
	Tick        float64  `toml:"tick"`
	History     int      `toml:"history"`
}

// SignalConfig holds the analyzer thresholds.
type SignalConfig struct {
	RunLength      int      `toml:"run_length"`
	ImbalanceRatio float64  `toml:"imbalance_ratio"`
	VolumeShare    float64  `toml:"volume_share"`
	MergeRange     float64  `toml:"merge_range"`
	Proximity      float64  `toml:"proximity"`
	ReversalRatio  float64  `toml:"reversal_ratio"`
	ImbalanceTail  duration `toml:"imbalance_tail"`
	Channel        string   `toml:"channel"`
	Stream         string   `toml:"stream"`
}

// BookConfig holds order book housekeeping parameters.
type BookConfig struct {
	PruneRange      float64  `toml:"prune_range"`
	PruneInterval   duration `toml:"prune_interval"`
	RefreshInterval duration `toml:"refresh_interval"`
}

// PersistConfig holds the persistence queue and drain-worker parameters.
type PersistConfig struct {
	QueueSize  int      `toml:"queue_size"`
	MaxRetries int      `toml:"max_retries"`
	RetryDelay duration `toml:"retry_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters and snapshot settings.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	SnapshotTTL  duration `toml:"snapshot_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds cold-storage parameters and the retention policy.
type S3Config struct {
	Enabled           bool     `toml:"enabled"`
	Endpoint          string   `toml:"endpoint"`
	Region            string   `toml:"region"`
	Bucket            string   `toml:"bucket"`
	AccessKey         string   `toml:"access_key"`
	SecretKey         string   `toml:"secret_key"`
	UseSSL            bool     `toml:"use_ssl"`
	ForcePathStyle    bool     `toml:"force_path_style"`
	RetentionMaxAge   duration `toml:"retention_max_age"`
	RetentionInterval duration `toml:"retention_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Cooldown          duration `toml:"cooldown"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values from
// config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			URL:               "wss://fstream.binance.com/ws",
			Symbol:            "BTCUSDT",
			DepthSpeed:        "100ms",
			HeartbeatInterval: duration{5 * time.Second},
			ReconnectFloor:    duration{1 * time.Second},
			ReconnectCeiling:  duration{60 * time.Second},
		},
		Window: WindowConfig{
			Granularity: duration{5 * time.Minute},
			Tick:        1.0,
			History:     288,
		},
		Signal: SignalConfig{
			RunLength:      3,
			ImbalanceRatio: 3.0,
			VolumeShare:    0.1,
			MergeRange:     5.0,
			Proximity:      5.0,
			ReversalRatio:  2.0,
			ImbalanceTail:  duration{10 * time.Second},
			Channel:        "signals",
			Stream:         "signals:log",
		},
		Book: BookConfig{
			PruneRange:      500.0,
			PruneInterval:   duration{1 * time.Minute},
			RefreshInterval: duration{1 * time.Second},
		},
		Persist: PersistConfig{
			QueueSize:  1024,
			MaxRetries: 3,
			RetryDelay: duration{2 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "footprintd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:      true,
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     20,
			MaxRetries:   3,
			TLSEnabled:   false,
			SnapshotTTL:  duration{30 * time.Second},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Enabled:           false,
			Endpoint:          "http://localhost:9000",
			Region:            "us-east-1",
			Bucket:            "footprintd-archive",
			UseSSL:            false,
			ForcePathStyle:    true,
			RetentionMaxAge:   duration{30 * 24 * time.Hour},
			RetentionInterval: duration{6 * time.Hour},
		},
		Notify: NotifyConfig{
			Cooldown: duration{5 * time.Second},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"record":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsPostgres reports whether the mode persists windows to PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	m := strings.ToLower(c.Mode)
	return m == "record" || m == "full"
}

// NeedsS3 reports whether cold-storage retention runs in this mode.
func (c *Config) NeedsS3() bool {
	return c.NeedsPostgres() && c.S3.Enabled
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, record, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.URL == "" {
		errs = append(errs, "feed: url must not be empty")
	}
	if c.Feed.Symbol == "" {
		errs = append(errs, "feed: symbol must not be empty")
	}
	if c.Feed.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "feed: heartbeat_interval must be positive")
	}
	if c.Feed.ReconnectFloor.Duration <= 0 {
		errs = append(errs, "feed: reconnect_floor must be positive")
	}
	if c.Feed.ReconnectCeiling.Duration < c.Feed.ReconnectFloor.Duration {
		errs = append(errs, "feed: reconnect_ceiling must be >= reconnect_floor")
	}

	// Window
	if c.Window.Granularity.Duration <= 0 {
		errs = append(errs, "window: granularity must be positive")
	}
	if c.Window.Tick <= 0 {
		errs = append(errs, "window: tick must be > 0")
	}
	if c.Window.History < 1 {
		errs = append(errs, "window: history must be >= 1")
	}

	// Signal
	if c.Signal.RunLength < 2 {
		errs = append(errs, "signal: run_length must be >= 2")
	}
	if c.Signal.ImbalanceRatio <= 1 {
		errs = append(errs, "signal: imbalance_ratio must be > 1")
	}
	if c.Signal.VolumeShare <= 0 || c.Signal.VolumeShare >= 1 {
		errs = append(errs, "signal: volume_share must be in (0, 1)")
	}
	if c.Signal.ReversalRatio <= 1 {
		errs = append(errs, "signal: reversal_ratio must be > 1")
	}
	if c.Signal.ImbalanceTail.Duration <= 0 || c.Signal.ImbalanceTail.Duration >= c.Window.Granularity.Duration {
		errs = append(errs, "signal: imbalance_tail must be positive and shorter than window granularity")
	}

	// Book
	if c.Book.PruneRange <= 0 {
		errs = append(errs, "book: prune_range must be > 0")
	}

	// Persist
	if c.Persist.QueueSize < 1 {
		errs = append(errs, "persist: queue_size must be >= 1")
	}
	if c.Persist.MaxRetries < 0 {
		errs = append(errs, "persist: max_retries must be >= 0")
	}

	// Postgres is only required when the mode writes to it.
	if c.NeedsPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.NeedsS3() {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
		if c.S3.RetentionMaxAge.Duration <= 0 {
			errs = append(errs, "s3: retention_max_age must be positive when enabled")
		}
		if c.S3.RetentionInterval.Duration <= 0 {
			errs = append(errs, "s3: retention_interval must be positive when enabled")
		}
	}

	// Notify — chat ID and token must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
