package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketglass/footprintd/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache, publishing the current
// order book and live footprint window so external read-only consumers
// (dashboards, terminal UIs) never touch the ingestion process.
//
// Key schema:
//
//	book:{symbol}:bids      - sorted set of bid prices (score = price)
//	book:{symbol}:asks      - sorted set of ask prices (score = price)
//	book:{symbol}:bid:size  - hash mapping price -> quantity for bids
//	book:{symbol}:ask:size  - hash mapping price -> quantity for asks
//	book:{symbol}:bbo       - hash with "bid", "ask", "last" fields
//	book:{symbol}:meta      - hash with "ts" field (snapshot timestamp)
//	footprint:{symbol}      - JSON of the live window
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
// A zero ttl disables expiry.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func bookBidsKey(symbol string) string    { return "book:" + symbol + ":bids" }
func bookAsksKey(symbol string) string    { return "book:" + symbol + ":asks" }
func bookBidSizeKey(symbol string) string { return "book:" + symbol + ":bid:size" }
func bookAskSizeKey(symbol string) string { return "book:" + symbol + ":ask:size" }
func bookBBOKey(symbol string) string     { return "book:" + symbol + ":bbo" }
func bookMetaKey(symbol string) string    { return "book:" + symbol + ":meta" }
func footprintKey(symbol string) string   { return "footprint:" + symbol }

// SetOrderBook atomically replaces the published order book snapshot.
func (sc *SnapshotCache) SetOrderBook(ctx context.Context, snap domain.OrderBookSnapshot) error {
	bidsKey := bookBidsKey(snap.Symbol)
	asksKey := bookAsksKey(snap.Symbol)
	bidSizeKey := bookBidSizeKey(snap.Symbol)
	askSizeKey := bookAskSizeKey(snap.Symbol)
	bboKey := bookBBOKey(snap.Symbol)
	metaKey := bookMetaKey(snap.Symbol)

	pipe := sc.rdb.TxPipeline()
	pipe.Del(ctx, bidsKey, asksKey, bidSizeKey, askSizeKey, bboKey, metaKey)

	for _, lvl := range snap.Levels {
		priceStr := strconv.FormatFloat(lvl.Price, 'f', -1, 64)
		if lvl.BidQty > 0 {
			pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price, Member: priceStr})
			pipe.HSet(ctx, bidSizeKey, priceStr, strconv.FormatFloat(lvl.BidQty, 'f', -1, 64))
		}
		if lvl.AskQty > 0 {
			pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price, Member: priceStr})
			pipe.HSet(ctx, askSizeKey, priceStr, strconv.FormatFloat(lvl.AskQty, 'f', -1, 64))
		}
	}

	if snap.BestBid > 0 {
		pipe.HSet(ctx, bboKey, "bid", strconv.FormatFloat(snap.BestBid, 'f', -1, 64))
	}
	if snap.BestAsk > 0 {
		pipe.HSet(ctx, bboKey, "ask", strconv.FormatFloat(snap.BestAsk, 'f', -1, 64))
	}
	if snap.LastTrade > 0 {
		pipe.HSet(ctx, bboKey, "last", strconv.FormatFloat(snap.LastTrade, 'f', -1, 64))
	}
	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10))

	if sc.ttl > 0 {
		for _, key := range []string{bidsKey, asksKey, bidSizeKey, askSizeKey, bboKey, metaKey} {
			pipe.Expire(ctx, key, sc.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set order book %s: %w", snap.Symbol, err)
	}
	return nil
}

// SetFootprint publishes the live footprint window as a JSON blob.
func (sc *SnapshotCache) SetFootprint(ctx context.Context, symbol string, win *domain.FootprintWindow) error {
	if win == nil {
		return nil
	}
	payload, err := json.Marshal(win)
	if err != nil {
		return fmt.Errorf("redis: marshal footprint %s: %w", symbol, err)
	}
	if err := sc.rdb.Set(ctx, footprintKey(symbol), payload, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set footprint %s: %w", symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
