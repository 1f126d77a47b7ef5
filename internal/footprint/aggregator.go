package footprint

import (
	"time"

	"github.com/marketglass/footprintd/internal/domain"
)

// Aggregator accumulates trades into a rolling current window and archives
// completed windows into a bounded FIFO history. It is not internally locked;
// the owning service serializes access behind its ingestion mutex.
type Aggregator struct {
	symbol      string
	granularity time.Duration
	tick        float64
	capacity    int

	current *domain.FootprintWindow
	history []*domain.FootprintWindow

	// raw trades of the current window, kept for persistence on rollover
	trades []domain.TradeEvent
}

// NewAggregator creates an aggregator producing windows of the given
// granularity with prices bucketed by tick, retaining up to capacity archived
// windows.
func NewAggregator(symbol string, granularity time.Duration, tick float64, capacity int) *Aggregator {
	return &Aggregator{
		symbol:      symbol,
		granularity: granularity,
		tick:        tick,
		capacity:    capacity,
	}
}

// OnTrade folds one trade into the current window. When the trade's window
// key is later than the current window, the finished window is archived (deep
// copy into history, oldest evicted beyond capacity) and returned together
// with its raw trades so the caller can hand both to persistence.
//
// A trade whose window key is older than the current window start (late,
// out-of-order delivery) is accumulated into the current window; past windows
// are never reopened or corrected.
func (a *Aggregator) OnTrade(ev domain.TradeEvent) (archived *domain.FootprintWindow, archivedTrades []domain.TradeEvent) {
	key := WindowStart(ev.Time, a.granularity)

	switch {
	case a.current == nil:
		a.current = domain.NewFootprintWindow(key)
	case key.After(a.current.Start):
		archived, archivedTrades = a.rollover()
		a.current = domain.NewFootprintWindow(key)
	}

	a.apply(ev)
	a.trades = append(a.trades, ev)
	return archived, archivedTrades
}

// apply updates OHLC, volume totals, the per-bucket flows, and delta.
func (a *Aggregator) apply(ev domain.TradeEvent) {
	w := a.current
	if !w.Opened {
		w.Open = ev.Price
		w.High = ev.Price
		w.Low = ev.Price
		w.Close = ev.Price
		w.Opened = true
	} else {
		w.Close = ev.Price
		if ev.Price > w.High {
			w.High = ev.Price
		}
		if ev.Price < w.Low {
			w.Low = ev.Price
		}
	}

	w.TotalVolume += ev.Quantity
	if ev.SellerInitiated {
		w.SellVolume += ev.Quantity
	} else {
		w.BuyVolume += ev.Quantity
	}

	idx := BucketIndex(ev.Price, a.tick)
	flow := w.Levels[idx]
	if ev.SellerInitiated {
		flow.SellVolume += ev.Quantity
	} else {
		flow.BuyVolume += ev.Quantity
	}
	flow.TradeCount++
	w.Levels[idx] = flow

	w.Delta = w.BuyVolume - w.SellVolume
}

// rollover archives the current window and drains its raw trades.
func (a *Aggregator) rollover() (*domain.FootprintWindow, []domain.TradeEvent) {
	w := a.current
	w.Delta = w.BuyVolume - w.SellVolume
	cp := w.Clone()

	a.history = append(a.history, cp)
	if len(a.history) > a.capacity {
		a.history = a.history[1:]
	}

	trades := a.trades
	a.trades = nil
	return cp, trades
}

// Current returns a deep copy of the live window, or nil before the first
// trade.
func (a *Aggregator) Current() *domain.FootprintWindow {
	return a.current.Clone()
}

// History returns a deep copy of the i-th most recent archived window
// (0 = newest). It returns nil when i is out of range.
func (a *Aggregator) History(i int) *domain.FootprintWindow {
	if i < 0 || i >= len(a.history) {
		return nil
	}
	return a.history[len(a.history)-1-i].Clone()
}

// HistoryLen returns the number of archived windows.
func (a *Aggregator) HistoryLen() int { return len(a.history) }

// HistorySlice returns the archived windows oldest-first. The returned slice
// shares the archived (immutable) windows; callers must treat them as
// read-only.
func (a *Aggregator) HistorySlice() []*domain.FootprintWindow {
	out := make([]*domain.FootprintWindow, len(a.history))
	copy(out, a.history)
	return out
}

// Tick returns the configured price bucket size.
func (a *Aggregator) Tick() float64 { return a.tick }
