package domain

import "time"

// BookLevel is one resting price level with quantities on both sides.
// A level never survives with both quantities at or below zero.
type BookLevel struct {
	Price  float64
	BidQty float64
	AskQty float64
}

// OrderBookSnapshot is an immutable copy of the reconstructed book, handed to
// presentation consumers. Levels are sorted by descending price.
type OrderBookSnapshot struct {
	Symbol    string
	Levels    []BookLevel
	BestBid   float64
	BestAsk   float64
	LastTrade float64
	Timestamp time.Time
}
