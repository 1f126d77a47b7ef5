package signal

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketglass/footprintd/internal/domain"
)

func testAnalyzer() *Analyzer {
	return New(Config{
		Tick:           1.0,
		RunLength:      3,
		ImbalanceRatio: 3.0,
		VolumeShare:    0.1,
		MergeRange:     5.0,
		Proximity:      5.0,
		ReversalRatio:  2.0,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func windowWithLevels(levels map[int64]domain.LevelFlow) *domain.FootprintWindow {
	w := domain.NewFootprintWindow(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	w.Levels = levels
	w.Opened = true
	return w
}

func TestConsecutiveImbalanceBuyRun(t *testing.T) {
	a := testAnalyzer()
	win := windowWithLevels(map[int64]domain.LevelFlow{
		100: {BuyVolume: 10, SellVolume: 1},
		101: {BuyVolume: 12, SellVolume: 1},
		102: {BuyVolume: 9, SellVolume: 1},
	})

	run := a.ConsecutiveImbalance(win)
	require.NotNil(t, run)
	assert.Equal(t, domain.ImbalanceBuy, run.Direction)
	assert.Equal(t, []float64{100, 101, 102}, run.Prices)
	assert.NotEmpty(t, run.ID)
}

func TestConsecutiveImbalanceGapBreaksRun(t *testing.T) {
	a := testAnalyzer()
	win := windowWithLevels(map[int64]domain.LevelFlow{
		100: {BuyVolume: 10, SellVolume: 1},
		101: {BuyVolume: 12, SellVolume: 1},
		103: {BuyVolume: 9, SellVolume: 1}, // gap at 102
	})

	assert.Nil(t, a.ConsecutiveImbalance(win))
}

func TestConsecutiveImbalanceZeroOppositeSideDoesNotQualify(t *testing.T) {
	a := testAnalyzer()
	// A level with zero sell volume has no defined ratio and must not count.
	win := windowWithLevels(map[int64]domain.LevelFlow{
		100: {BuyVolume: 10, SellVolume: 0},
		101: {BuyVolume: 12, SellVolume: 1},
		102: {BuyVolume: 9, SellVolume: 1},
	})

	assert.Nil(t, a.ConsecutiveImbalance(win))
}

func TestConsecutiveImbalanceMixedDirectionsDoNotRun(t *testing.T) {
	a := testAnalyzer()
	win := windowWithLevels(map[int64]domain.LevelFlow{
		100: {BuyVolume: 10, SellVolume: 1},
		101: {BuyVolume: 1, SellVolume: 10},
		102: {BuyVolume: 9, SellVolume: 1},
	})

	assert.Nil(t, a.ConsecutiveImbalance(win))
}

func TestConsecutiveImbalanceSellRun(t *testing.T) {
	a := testAnalyzer()
	win := windowWithLevels(map[int64]domain.LevelFlow{
		200: {BuyVolume: 1, SellVolume: 5},
		201: {BuyVolume: 2, SellVolume: 7},
		202: {BuyVolume: 1, SellVolume: 4},
	})

	run := a.ConsecutiveImbalance(win)
	require.NotNil(t, run)
	assert.Equal(t, domain.ImbalanceSell, run.Direction)
}

func TestSupportResistanceMergesNearbyBuckets(t *testing.T) {
	a := testAnalyzer()
	// Two heavy buckets 3 apart merge into one zone; one 20 away stays
	// separate. Buy-dominated volume classifies the zone as support.
	history := []*domain.FootprintWindow{
		windowWithLevels(map[int64]domain.LevelFlow{
			100: {BuyVolume: 30, SellVolume: 10},
			103: {BuyVolume: 25, SellVolume: 5},
			120: {BuyVolume: 5, SellVolume: 25},
		}),
	}

	zones := a.SupportResistance(history)
	require.Len(t, zones, 2)

	assert.Equal(t, 100.0, zones[0].Price)
	assert.Equal(t, 70.0, zones[0].Volume)
	assert.Equal(t, domain.ZoneSupport, zones[0].Kind)
	assert.InDelta(t, 0.7, zones[0].Strength, 1e-9)

	assert.Equal(t, 120.0, zones[1].Price)
	assert.Equal(t, domain.ZoneResistance, zones[1].Kind)
}

func TestSupportResistanceFiltersInsignificantBuckets(t *testing.T) {
	a := testAnalyzer()
	history := []*domain.FootprintWindow{
		windowWithLevels(map[int64]domain.LevelFlow{
			100: {BuyVolume: 95, SellVolume: 0},
			200: {BuyVolume: 5, SellVolume: 0}, // 5% of total, below the 10% share
		}),
	}

	zones := a.SupportResistance(history)
	require.Len(t, zones, 1)
	assert.Equal(t, 100.0, zones[0].Price)
}

func TestSupportResistanceAggregatesAcrossWindows(t *testing.T) {
	a := testAnalyzer()
	history := []*domain.FootprintWindow{
		windowWithLevels(map[int64]domain.LevelFlow{100: {BuyVolume: 10}}),
		windowWithLevels(map[int64]domain.LevelFlow{100: {SellVolume: 40}}),
	}

	zones := a.SupportResistance(history)
	require.Len(t, zones, 1)
	assert.Equal(t, 50.0, zones[0].Volume)
	assert.Equal(t, domain.ZoneResistance, zones[0].Kind, "sell volume dominates the merged bucket")
}

func TestSupportResistanceEmptyHistory(t *testing.T) {
	a := testAnalyzer()
	assert.Nil(t, a.SupportResistance(nil))
}

func reversalWindow(open, close, buy, sell float64) *domain.FootprintWindow {
	w := domain.NewFootprintWindow(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	w.Opened = true
	w.Open = open
	w.Close = close
	w.BuyVolume = buy
	w.SellVolume = sell
	return w
}

func TestReversalBuyAtResistance(t *testing.T) {
	a := testAnalyzer()
	zones := []domain.SupportResistanceLevel{
		{Price: 102, Kind: domain.ZoneResistance, Strength: 0.4},
	}
	// Price falling into resistance with buyers absorbing at 3:1.
	win := reversalWindow(105, 101, 30, 10)

	sig := a.ReversalSignal(win, zones)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalBuy, sig.Action)
	assert.Equal(t, 101.0, sig.Price)
	assert.Equal(t, 102.0, sig.ZonePrice)
	assert.InDelta(t, 3.0, sig.ImbalanceRatio, 1e-9)
}

func TestReversalSellAtSupport(t *testing.T) {
	a := testAnalyzer()
	zones := []domain.SupportResistanceLevel{
		{Price: 100, Kind: domain.ZoneSupport, Strength: 0.4},
	}
	// Price rising into support with sellers dominating.
	win := reversalWindow(97, 101, 10, 25)

	sig := a.ReversalSignal(win, zones)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalSell, sig.Action)
}

func TestReversalRequiresProximity(t *testing.T) {
	a := testAnalyzer()
	zones := []domain.SupportResistanceLevel{
		{Price: 150, Kind: domain.ZoneResistance, Strength: 0.4},
	}
	win := reversalWindow(105, 101, 30, 10)

	assert.Nil(t, a.ReversalSignal(win, zones))
}

func TestReversalRequiresRatio(t *testing.T) {
	a := testAnalyzer()
	zones := []domain.SupportResistanceLevel{
		{Price: 102, Kind: domain.ZoneResistance, Strength: 0.4},
	}
	// Falling into resistance but buy/sell is only 1.5, below the 2.0 bar.
	win := reversalWindow(105, 101, 15, 10)

	assert.Nil(t, a.ReversalSignal(win, zones))
}

func TestReversalDirectionMustOppose(t *testing.T) {
	a := testAnalyzer()
	zones := []domain.SupportResistanceLevel{
		{Price: 102, Kind: domain.ZoneResistance, Strength: 0.4},
	}
	// Rising into resistance is not a rejection setup.
	win := reversalWindow(99, 101, 30, 10)

	assert.Nil(t, a.ReversalSignal(win, zones))
}

func TestReversalNilWindow(t *testing.T) {
	a := testAnalyzer()
	assert.Nil(t, a.ReversalSignal(nil, nil))
}
