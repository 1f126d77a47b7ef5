package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketglass/footprintd/internal/domain"
)

// Runner is the drain worker: it dequeues archive records and writes them to
// a Sink, retrying each record a bounded number of times before logging it as
// dropped. A write failure is a recoverable data-loss event, never fatal.
type Runner struct {
	queue      *Queue
	sink       domain.Sink
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewRunner creates a drain worker for queue backed by sink.
func NewRunner(queue *Queue, sink domain.Sink, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		queue:      queue,
		sink:       sink,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With(slog.String("component", "persist")),
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is left
// with a bounded timeout so shutdown never hangs on a dead sink.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			r.Flush(flushCtx)
			return ctx.Err()
		case <-r.queue.wait():
			r.drain(ctx)
		}
	}
}

// drain writes queued records until the queue is empty or ctx is cancelled.
func (r *Runner) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		rec, ok := r.queue.Dequeue()
		if !ok {
			return
		}
		r.write(ctx, rec)
	}
}

// write attempts one record with the configured retry budget.
func (r *Runner) write(ctx context.Context, rec domain.ArchiveRecord) {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				r.logDropped(rec, ctx.Err())
				return
			case <-time.After(r.retryDelay):
			}
		}
		if err = r.sink.Write(ctx, rec); err == nil {
			return
		}
		r.logger.Warn("persist write failed",
			slog.String("kind", string(rec.Kind)),
			slog.Time("window_start", rec.WindowStart),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	r.logDropped(rec, err)
}

// Flush synchronously writes all remaining records. Called once at shutdown.
func (r *Runner) Flush(ctx context.Context) {
	for {
		rec, ok := r.queue.Dequeue()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			r.logDropped(rec, ctx.Err())
			continue
		}
		if err := r.sink.Write(ctx, rec); err != nil {
			r.logDropped(rec, err)
		}
	}
}

func (r *Runner) logDropped(rec domain.ArchiveRecord, err error) {
	r.logger.Error("persist record dropped",
		slog.String("kind", string(rec.Kind)),
		slog.String("symbol", rec.Symbol),
		slog.Time("window_start", rec.WindowStart),
		slog.String("error", errString(err)),
	)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
