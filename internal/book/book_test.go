package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketglass/footprintd/internal/domain"
)

func TestUpdateSetsAndClearsLevels(t *testing.T) {
	b := New("BTCUSDT")

	b.Update(100, 5, domain.SideBid)
	b.Update(101, 3, domain.SideAsk)
	assert.Equal(t, 2, b.Len())

	// Same price can hold both sides.
	b.Update(100, 2, domain.SideAsk)
	assert.Equal(t, 2, b.Len())

	// Clearing one side keeps the level while the other side rests.
	b.Update(100, 0, domain.SideBid)
	assert.Equal(t, 2, b.Len())

	// Clearing the remaining side deletes the level entirely.
	b.Update(100, 0, domain.SideAsk)
	assert.Equal(t, 1, b.Len())
}

func TestUpdateZeroQtyOnMissingLevelIsNoop(t *testing.T) {
	b := New("BTCUSDT")
	b.Update(100, 0, domain.SideBid)
	assert.Equal(t, 0, b.Len())
}

func TestBestBidAndAsk(t *testing.T) {
	b := New("BTCUSDT")

	_, ok := b.BestBid()
	assert.False(t, ok)
	_, ok = b.BestAsk()
	assert.False(t, ok)

	b.Update(99, 1, domain.SideBid)
	b.Update(100, 1, domain.SideBid)
	b.Update(101, 1, domain.SideAsk)
	b.Update(102, 1, domain.SideAsk)

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 101.0, ask)

	// Removing the touch exposes the next level.
	b.Update(100, 0, domain.SideBid)
	bid, ok = b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 99.0, bid)
}

func TestPruneKeepsLevelsNearReference(t *testing.T) {
	b := New("BTCUSDT")
	for _, p := range []float64{50, 95, 100, 105, 200} {
		b.Update(p, 1, domain.SideBid)
	}

	b.Prune(100, 10)

	assert.Equal(t, 3, b.Len())
	_, hasFar := b.BestBid()
	require.True(t, hasFar)
	bid, _ := b.BestBid()
	assert.Equal(t, 105.0, bid)
}

func TestLastTrade(t *testing.T) {
	b := New("BTCUSDT")
	_, ok := b.LastTrade()
	assert.False(t, ok)

	b.SetLastTrade(123.45)
	price, ok := b.LastTrade()
	require.True(t, ok)
	assert.Equal(t, 123.45, price)
}

func TestSnapshotSortedAndIsolated(t *testing.T) {
	b := New("BTCUSDT")
	b.Update(99, 2, domain.SideBid)
	b.Update(101, 3, domain.SideAsk)
	b.Update(100, 1, domain.SideBid)
	b.SetLastTrade(100.5)

	snap := b.Snapshot()

	assert.Equal(t, "BTCUSDT", snap.Symbol)
	require.Len(t, snap.Levels, 3)
	assert.Equal(t, 101.0, snap.Levels[0].Price)
	assert.Equal(t, 100.0, snap.Levels[1].Price)
	assert.Equal(t, 99.0, snap.Levels[2].Price)
	assert.Equal(t, 100.0, snap.BestBid)
	assert.Equal(t, 101.0, snap.BestAsk)
	assert.Equal(t, 100.5, snap.LastTrade)

	// Snapshot is a deep copy.
	snap.Levels[0].AskQty = 999
	fresh := b.Snapshot()
	assert.Equal(t, 3.0, fresh.Levels[0].AskQty)
}
