package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketglass/footprintd/internal/domain"
)

// fakeSink records writes and can be scripted to fail the first N attempts
// per record.
type fakeSink struct {
	mu       sync.Mutex
	failures int
	attempts int
	written  []domain.ArchiveRecord
}

func (f *fakeSink) Write(ctx context.Context, rec domain.ArchiveRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("sink unavailable")
	}
	f.written = append(f.written, rec)
	return nil
}

func (f *fakeSink) writtenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerDrainsQueue(t *testing.T) {
	q := NewQueue(10)
	sink := &fakeSink{}
	r := NewRunner(q, sink, 0, time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	q.Enqueue(record(1))
	q.Enqueue(record(2))

	require.Eventually(t, func() bool { return sink.writtenCount() == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, q.Len())
}

func TestRunnerRetriesWithinBudget(t *testing.T) {
	q := NewQueue(10)
	sink := &fakeSink{failures: 2}
	r := NewRunner(q, sink, 3, time.Millisecond, discardLogger())

	q.Enqueue(record(1))
	r.drain(context.Background())

	assert.Equal(t, 1, sink.writtenCount())
	assert.Equal(t, 3, sink.attempts)
}

func TestRunnerDropsAfterRetryBudget(t *testing.T) {
	q := NewQueue(10)
	sink := &fakeSink{failures: 100}
	r := NewRunner(q, sink, 2, time.Millisecond, discardLogger())

	q.Enqueue(record(1))
	r.drain(context.Background())

	// 1 attempt + 2 retries, then the record is dropped.
	assert.Equal(t, 0, sink.writtenCount())
	assert.Equal(t, 3, sink.attempts)
	assert.Equal(t, 0, q.Len())
}

func TestFlushWritesRemainder(t *testing.T) {
	q := NewQueue(10)
	sink := &fakeSink{}
	r := NewRunner(q, sink, 0, time.Millisecond, discardLogger())

	q.Enqueue(record(1))
	q.Enqueue(record(2))
	r.Flush(context.Background())

	assert.Equal(t, 2, sink.writtenCount())
	assert.Equal(t, 0, q.Len())
}
