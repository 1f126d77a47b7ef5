// Package book maintains an in-memory reconstruction of the limit order book
// from incremental depth updates.
package book

import (
	"sort"
	"time"

	"github.com/marketglass/footprintd/internal/domain"
)

// Book holds bid/ask quantity per price, rebuilt continuously from depth
// diffs. It is not internally locked: the owning service serializes all
// access behind its ingestion mutex.
type Book struct {
	symbol       string
	levels       map[float64]*domain.BookLevel
	lastTrade    float64
	hasLastTrade bool
}

// New creates an empty book for the given symbol.
func New(symbol string) *Book {
	return &Book{
		symbol: symbol,
		levels: make(map[float64]*domain.BookLevel),
	}
}

// Update applies one [price, quantity] diff for a side. A quantity greater
// than zero overwrites that side's resting quantity; a quantity at or below
// zero clears the side, and the level is deleted once both sides are empty.
func (b *Book) Update(price, qty float64, side domain.Side) {
	if qty > 0 {
		lvl, ok := b.levels[price]
		if !ok {
			lvl = &domain.BookLevel{Price: price}
			b.levels[price] = lvl
		}
		if side == domain.SideBid {
			lvl.BidQty = qty
		} else {
			lvl.AskQty = qty
		}
		return
	}

	lvl, ok := b.levels[price]
	if !ok {
		return
	}
	if side == domain.SideBid {
		lvl.BidQty = 0
	} else {
		lvl.AskQty = 0
	}
	if lvl.BidQty <= 0 && lvl.AskQty <= 0 {
		delete(b.levels, price)
	}
}

// BestBid returns the highest price with positive bid quantity.
func (b *Book) BestBid() (float64, bool) {
	var best float64
	found := false
	for price, lvl := range b.levels {
		if lvl.BidQty > 0 && (!found || price > best) {
			best = price
			found = true
		}
	}
	return best, found
}

// BestAsk returns the lowest price with positive ask quantity.
func (b *Book) BestAsk() (float64, bool) {
	var best float64
	found := false
	for price, lvl := range b.levels {
		if lvl.AskQty > 0 && (!found || price < best) {
			best = price
			found = true
		}
	}
	return best, found
}

// SetLastTrade records the most recent traded price. It is independent of the
// book's resting quantities and serves as the reference price for Prune.
func (b *Book) SetLastTrade(price float64) {
	b.lastTrade = price
	b.hasLastTrade = true
}

// LastTrade returns the most recent traded price, if any trade has been seen.
func (b *Book) LastTrade() (float64, bool) {
	return b.lastTrade, b.hasLastTrade
}

// Prune removes every level outside [ref-rng, ref+rng]. Long sessions call
// this periodically so quotes far from the traded price do not accumulate.
func (b *Book) Prune(ref, rng float64) {
	for price := range b.levels {
		if price < ref-rng || price > ref+rng {
			delete(b.levels, price)
		}
	}
}

// Len returns the number of retained price levels.
func (b *Book) Len() int { return len(b.levels) }

// Snapshot returns a deep copy of the book sorted by descending price,
// together with the derived best bid/ask and last trade price.
func (b *Book) Snapshot() domain.OrderBookSnapshot {
	snap := domain.OrderBookSnapshot{
		Symbol:    b.symbol,
		Levels:    make([]domain.BookLevel, 0, len(b.levels)),
		LastTrade: b.lastTrade,
		Timestamp: time.Now().UTC(),
	}
	for _, lvl := range b.levels {
		snap.Levels = append(snap.Levels, *lvl)
	}
	sort.Slice(snap.Levels, func(i, j int) bool {
		return snap.Levels[i].Price > snap.Levels[j].Price
	})
	if bid, ok := b.BestBid(); ok {
		snap.BestBid = bid
	}
	if ask, ok := b.BestAsk(); ok {
		snap.BestAsk = ask
	}
	return snap
}
