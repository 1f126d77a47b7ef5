// Package domain defines the core data types shared across the footprintd
// components: feed events, the order book and footprint models, derived
// signals, and the narrow interfaces implemented by the persistence and
// cache layers.
package domain

import "time"

// Side identifies which side of the book a quantity belongs to.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Event is the decoded form of an inbound feed message. Exactly two kinds
// exist: TradeEvent and DepthEvent. Decoding happens once at the transport
// boundary; everything downstream switches on the concrete type.
type Event interface {
	// EventTime returns the exchange timestamp carried by the message.
	EventTime() time.Time
}

// TradeEvent is a single executed trade (Binance aggTrade).
type TradeEvent struct {
	Symbol          string
	Price           float64
	Quantity        float64
	SellerInitiated bool // true when the buyer was the maker
	Time            time.Time
}

// EventTime implements Event.
func (e TradeEvent) EventTime() time.Time { return e.Time }

// PriceQty is one [price, quantity] pair from a depth diff.
type PriceQty struct {
	Price    float64
	Quantity float64
}

// DepthEvent is an incremental order book update (Binance depthUpdate).
// A zero quantity means the level was removed on that side.
type DepthEvent struct {
	Symbol string
	Bids   []PriceQty
	Asks   []PriceQty
	Time   time.Time
}

// EventTime implements Event.
func (e DepthEvent) EventTime() time.Time { return e.Time }
