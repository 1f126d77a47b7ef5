package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/marketglass/footprintd/internal/blob/s3"
	"github.com/marketglass/footprintd/internal/cache/redis"
	"github.com/marketglass/footprintd/internal/config"
	"github.com/marketglass/footprintd/internal/domain"
	"github.com/marketglass/footprintd/internal/notify"
	"github.com/marketglass/footprintd/internal/pipeline"
	"github.com/marketglass/footprintd/internal/store/postgres"
)

// Dependencies bundles the external-facing dependencies the operating modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function. Nil fields mean the backend is not configured for this mode.
type Dependencies struct {
	// Hot store
	WindowStore domain.WindowStore
	TradeStore  domain.TradeStore
	Sink        domain.Sink

	// Presentation and signal fan-out
	SnapshotCache domain.SnapshotCache
	SignalBus     domain.SignalBus

	// Cold storage
	Retention *pipeline.Retention

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that persist windows) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.WindowStore = postgres.NewFootprintStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.Sink = postgres.NewQueueSink(deps.WindowStore, deps.TradeStore)
	}

	// --- Redis (presentation snapshots and signal fan-out) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SnapshotCache = redis.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
	}

	// --- S3 cold storage (retention runs only beside Postgres) ---
	if cfg.NeedsS3() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		archiver := s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.WindowStore, deps.TradeStore, logger)
		deps.Retention = pipeline.NewRetention(
			archiver,
			cfg.Feed.Symbol,
			cfg.S3.RetentionMaxAge.Duration,
			cfg.S3.RetentionInterval.Duration,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Cooldown.Duration, logger)
	}

	return deps, cleanup, nil
}
