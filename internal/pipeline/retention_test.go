package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	windowCutoffs []time.Time
	tradeCutoffs  []time.Time
	windowErr     error
}

func (f *fakeArchiver) ArchiveWindows(ctx context.Context, symbol string, before time.Time) (int64, error) {
	if f.windowErr != nil {
		return 0, f.windowErr
	}
	f.windowCutoffs = append(f.windowCutoffs, before)
	return 3, nil
}

func (f *fakeArchiver) ArchiveTrades(ctx context.Context, symbol string, before time.Time) (int64, error) {
	f.tradeCutoffs = append(f.tradeCutoffs, before)
	return 10, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceUsesMaxAgeCutoff(t *testing.T) {
	fake := &fakeArchiver{}
	r := NewRetention(fake, "BTCUSDT", 24*time.Hour, time.Hour, discardLogger())

	before := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, fake.windowCutoffs, 1)
	require.Len(t, fake.tradeCutoffs, 1)
	assert.WithinDuration(t, before, fake.windowCutoffs[0], 5*time.Second)
	assert.Equal(t, fake.windowCutoffs[0], fake.tradeCutoffs[0], "both passes share one cutoff")
}

func TestRunOncePropagatesErrors(t *testing.T) {
	fake := &fakeArchiver{windowErr: errors.New("bucket gone")}
	r := NewRetention(fake, "BTCUSDT", 24*time.Hour, time.Hour, discardLogger())

	err := r.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Empty(t, fake.tradeCutoffs, "trade pass is skipped after a window failure")
}

func TestRunStopsOnCancel(t *testing.T) {
	fake := &fakeArchiver{}
	r := NewRetention(fake, "BTCUSDT", 24*time.Hour, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
