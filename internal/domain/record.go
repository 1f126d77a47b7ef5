package domain

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// RecordKind discriminates what an ArchiveRecord's payload contains.
type RecordKind string

const (
	// RecordWindow carries one archived FootprintWindow as JSON.
	RecordWindow RecordKind = "window"
	// RecordTrades carries the raw trades of one finished window as a JSON array.
	RecordTrades RecordKind = "trades"
)

// ArchiveRecord is the unit handed to the persistence queue when a window
// rolls over. Payload is pre-serialized so the drain worker never touches
// live aggregation state.
type ArchiveRecord struct {
	Kind        RecordKind
	Symbol      string
	WindowStart time.Time
	Payload     json.RawMessage
	EnqueuedAt  time.Time
}

// Sink consumes archive records, typically writing them to durable storage.
// Write is called from the drain worker only, never from the ingestion path.
type Sink interface {
	Write(ctx context.Context, rec ArchiveRecord) error
}

// WindowStore persists archived footprint windows.
type WindowStore interface {
	InsertWindow(ctx context.Context, symbol string, start time.Time, payload json.RawMessage) error
	ListBefore(ctx context.Context, symbol string, before time.Time) ([]StoredWindow, error)
	DeleteBefore(ctx context.Context, symbol string, before time.Time) (int64, error)
}

// TradeStore persists the raw trades belonging to archived windows.
type TradeStore interface {
	InsertTrades(ctx context.Context, symbol string, start time.Time, trades []TradeEvent) error
	ListBefore(ctx context.Context, symbol string, before time.Time) ([]StoredTrade, error)
	DeleteBefore(ctx context.Context, symbol string, before time.Time) (int64, error)
}

// StoredWindow is a persisted footprint window row.
type StoredWindow struct {
	Symbol      string          `json:"symbol"`
	WindowStart time.Time       `json:"window_start"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StoredTrade is a persisted raw trade row.
type StoredTrade struct {
	Symbol          string    `json:"symbol"`
	WindowStart     time.Time `json:"window_start"`
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	SellerInitiated bool      `json:"seller_initiated"`
	Time            time.Time `json:"time"`
}

// SnapshotCache publishes the current views for read-only consumers.
type SnapshotCache interface {
	SetOrderBook(ctx context.Context, snap OrderBookSnapshot) error
	SetFootprint(ctx context.Context, symbol string, win *FootprintWindow) error
}

// SignalBus broadcasts detected signals to external subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BlobWriter uploads objects to cold storage. PutMultipart is for payloads
// large enough to split into concurrently uploaded parts.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
