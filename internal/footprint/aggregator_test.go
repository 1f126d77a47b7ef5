package footprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketglass/footprintd/internal/domain"
)

func trade(price, qty float64, sellerInit bool, at time.Time) domain.TradeEvent {
	return domain.TradeEvent{
		Symbol:          "BTCUSDT",
		Price:           price,
		Quantity:        qty,
		SellerInitiated: sellerInit,
		Time:            at,
	}
}

func TestAggregatorFirstTradeOpensWindow(t *testing.T) {
	agg := NewAggregator("BTCUSDT", 5*time.Minute, 1.0, 10)
	at := time.Date(2026, 3, 1, 10, 2, 30, 0, time.UTC)

	archived, _ := agg.OnTrade(trade(100.5, 2, false, at))
	assert.Nil(t, archived)

	cur := agg.Current()
	require.NotNil(t, cur)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), cur.Start)
	assert.True(t, cur.Opened)
	assert.Equal(t, 100.5, cur.Open)
	assert.Equal(t, 100.5, cur.Close)
	assert.Equal(t, 2.0, cur.TotalVolume)
	assert.Equal(t, 2.0, cur.BuyVolume)
}

func TestAggregatorOHLCAndDelta(t *testing.T) {
	agg := NewAggregator("BTCUSDT", 5*time.Minute, 1.0, 10)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(trade(100, 1, false, base))
	agg.OnTrade(trade(103, 2, true, base.Add(10*time.Second)))
	agg.OnTrade(trade(99, 4, false, base.Add(20*time.Second)))

	cur := agg.Current()
	assert.Equal(t, 100.0, cur.Open)
	assert.Equal(t, 103.0, cur.High)
	assert.Equal(t, 99.0, cur.Low)
	assert.Equal(t, 99.0, cur.Close)
	assert.Equal(t, 7.0, cur.TotalVolume)
	assert.Equal(t, 5.0, cur.BuyVolume)
	assert.Equal(t, 2.0, cur.SellVolume)
	assert.Equal(t, cur.BuyVolume-cur.SellVolume, cur.Delta)

	// Per-level flows sum to the window totals.
	var buy, sell float64
	for _, flow := range cur.Levels {
		buy += flow.BuyVolume
		sell += flow.SellVolume
	}
	assert.Equal(t, cur.BuyVolume, buy)
	assert.Equal(t, cur.SellVolume, sell)
}

func TestAggregatorRollover(t *testing.T) {
	agg := NewAggregator("BTCUSDT", 5*time.Minute, 1.0, 10)
	w1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(trade(100, 1, false, w1.Add(time.Second)))
	agg.OnTrade(trade(101, 1, true, w1.Add(2*time.Second)))

	archived, trades := agg.OnTrade(trade(102, 3, false, w1.Add(5*time.Minute+time.Second)))
	require.NotNil(t, archived)
	assert.Equal(t, w1, archived.Start)
	assert.Equal(t, 2.0, archived.TotalVolume)
	require.Len(t, trades, 2)
	assert.Equal(t, 100.0, trades[0].Price)

	cur := agg.Current()
	assert.Equal(t, w1.Add(5*time.Minute), cur.Start)
	assert.Equal(t, 3.0, cur.TotalVolume)
	assert.Equal(t, 1, agg.HistoryLen())
}

func TestAggregatorLateTradeStaysInCurrentWindow(t *testing.T) {
	agg := NewAggregator("BTCUSDT", 5*time.Minute, 1.0, 10)
	w2 := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	agg.OnTrade(trade(100, 1, false, w2.Add(time.Second)))
	// A trade stamped before the current window must not reopen the past.
	archived, _ := agg.OnTrade(trade(99, 2, true, w2.Add(-time.Minute)))
	assert.Nil(t, archived)

	cur := agg.Current()
	assert.Equal(t, w2, cur.Start)
	assert.Equal(t, 3.0, cur.TotalVolume)
	assert.Equal(t, 0, agg.HistoryLen())
}

func TestAggregatorHistoryCapacityEvictsOldest(t *testing.T) {
	agg := NewAggregator("BTCUSDT", time.Minute, 1.0, 2)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		agg.OnTrade(trade(100+float64(i), 1, false, base.Add(time.Duration(i)*time.Minute)))
	}

	require.Equal(t, 2, agg.HistoryLen())
	newest := agg.History(0)
	oldest := agg.History(1)
	assert.Equal(t, base.Add(2*time.Minute), newest.Start)
	assert.Equal(t, base.Add(1*time.Minute), oldest.Start)
	assert.Nil(t, agg.History(2))
}

func TestAggregatorArchivedWindowIsDeepCopy(t *testing.T) {
	agg := NewAggregator("BTCUSDT", time.Minute, 1.0, 10)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	agg.OnTrade(trade(100, 1, false, base))
	archived, _ := agg.OnTrade(trade(100, 1, false, base.Add(time.Minute)))
	require.NotNil(t, archived)

	before := archived.Levels[100]

	// Mutating the new live window must not bleed into the archive.
	agg.OnTrade(trade(100, 50, true, base.Add(time.Minute+time.Second)))

	assert.Equal(t, before, archived.Levels[100])
	assert.Equal(t, 1.0, archived.TotalVolume)
}

func TestAggregatorCurrentIsACopy(t *testing.T) {
	agg := NewAggregator("BTCUSDT", time.Minute, 1.0, 10)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	agg.OnTrade(trade(100, 1, false, base))

	snap := agg.Current()
	snap.Levels[999] = domain.LevelFlow{BuyVolume: 42}

	fresh := agg.Current()
	_, ok := fresh.Levels[999]
	assert.False(t, ok)
}

func TestAggregatorCurrentNilBeforeFirstTrade(t *testing.T) {
	agg := NewAggregator("BTCUSDT", time.Minute, 1.0, 10)
	assert.Nil(t, agg.Current())
}
