package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marketglass/footprintd/internal/domain"
)

// QueueSink adapts the window and trade stores to the persistence queue's
// Sink interface, dispatching on the record kind.
type QueueSink struct {
	windows domain.WindowStore
	trades  domain.TradeStore
}

// NewQueueSink creates a sink writing to the given stores.
func NewQueueSink(windows domain.WindowStore, trades domain.TradeStore) *QueueSink {
	return &QueueSink{windows: windows, trades: trades}
}

// Write stores one archive record.
func (s *QueueSink) Write(ctx context.Context, rec domain.ArchiveRecord) error {
	switch rec.Kind {
	case domain.RecordWindow:
		return s.windows.InsertWindow(ctx, rec.Symbol, rec.WindowStart, rec.Payload)
	case domain.RecordTrades:
		var trades []domain.TradeEvent
		if err := json.Unmarshal(rec.Payload, &trades); err != nil {
			return fmt.Errorf("postgres: decode trades payload: %w", err)
		}
		return s.trades.InsertTrades(ctx, rec.Symbol, rec.WindowStart, trades)
	default:
		return fmt.Errorf("postgres: unknown record kind %q", rec.Kind)
	}
}

// Compile-time interface check.
var _ domain.Sink = (*QueueSink)(nil)
