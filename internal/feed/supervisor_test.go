package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketglass/footprintd/internal/domain"
)

func testSupervisor() *Supervisor {
	cfg := Config{
		URL:               "wss://example.invalid/ws",
		Symbol:            "BTCUSDT",
		DepthSpeed:        "100ms",
		HeartbeatInterval: 5 * time.Second,
		ReconnectFloor:    time.Second,
		ReconnectCeiling:  60 * time.Second,
	}
	return NewSupervisor(cfg, func(ctx context.Context, ev domain.Event) {}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBackoffDoublesToCeiling(t *testing.T) {
	s := testSupervisor()

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second, // clamped
		60 * time.Second, // stays clamped
	}
	for _, expected := range want {
		s.bumpBackoff()
		assert.Equal(t, expected, s.ReconnectDelay())
	}
}

func TestBackoffResetsToFloor(t *testing.T) {
	s := testSupervisor()
	s.bumpBackoff()
	s.bumpBackoff()
	assert.Equal(t, 4*time.Second, s.ReconnectDelay())

	s.resetBackoff()
	assert.Equal(t, time.Second, s.ReconnectDelay())
}

func TestStreamsLowercaseSymbol(t *testing.T) {
	s := testSupervisor()
	assert.Equal(t, []string{"btcusdt@aggTrade", "btcusdt@depth@100ms"}, s.streams())
}

func TestInitialState(t *testing.T) {
	s := testSupervisor()
	assert.Equal(t, StateDisconnected, s.State())
}
