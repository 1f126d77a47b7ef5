// Package pipeline hosts the long-running background jobs that run beside
// the live monitor.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ColdArchiver is the archival surface the retention job drives. The s3blob
// archiver satisfies it.
type ColdArchiver interface {
	ArchiveWindows(ctx context.Context, symbol string, before time.Time) (int64, error)
	ArchiveTrades(ctx context.Context, symbol string, before time.Time) (int64, error)
}

// Retention periodically moves aged windows and trades from the hot store
// into cold storage.
type Retention struct {
	archiver ColdArchiver
	symbol   string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewRetention creates a retention job keeping at most maxAge of hot data,
// checked every interval.
func NewRetention(archiver ColdArchiver, symbol string, maxAge, interval time.Duration, logger *slog.Logger) *Retention {
	return &Retention{
		archiver: archiver,
		symbol:   symbol,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With(slog.String("component", "retention")),
	}
}

// RunOnce executes a single retention pass.
func (r *Retention) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.maxAge)

	windows, err := r.archiver.ArchiveWindows(ctx, r.symbol, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive windows before %v: %w", cutoff, err)
	}
	trades, err := r.archiver.ArchiveTrades(ctx, r.symbol, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive trades before %v: %w", cutoff, err)
	}

	if windows > 0 || trades > 0 {
		r.logger.Info("retention pass complete",
			slog.Time("cutoff", cutoff),
			slog.Int64("windows", windows),
			slog.Int64("trades", trades),
		)
	}
	return nil
}

// Run executes retention passes on the configured interval until the
// context is cancelled. A failed pass is logged and retried on the next
// tick.
func (r *Retention) Run(ctx context.Context) error {
	r.logger.Info("retention started",
		slog.Duration("max_age", r.maxAge),
		slog.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("retention stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("retention pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
