package feed

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/marketglass/footprintd/internal/domain"
)

// wsCommand is the JSON frame for subscribing and unsubscribing to streams.
type wsCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// aggTradeMessage mirrors the Binance futures aggTrade event.
type aggTradeMessage struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// depthUpdateMessage mirrors the Binance futures depthUpdate event. Bids and
// asks arrive as [price, quantity] string pairs.
type depthUpdateMessage struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

// DecodeMessage parses one raw feed frame into a domain event. Frames that
// are not one of the two known event kinds (subscription acks, unknown
// events) decode to (nil, nil) and are silently ignored. A malformed frame
// returns an error and the whole message is discarded; no partial state
// mutation ever results from a bad message.
func DecodeMessage(raw []byte) (domain.Event, error) {
	var envelope struct {
		EventType string `json:"e"`
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("feed: decode envelope: %w", err)
	}

	switch envelope.EventType {
	case "aggTrade":
		var msg aggTradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("feed: decode aggTrade: %w", err)
		}
		price, err := parsePositive(msg.Price)
		if err != nil {
			return nil, fmt.Errorf("feed: aggTrade price: %w", err)
		}
		qty, err := parsePositive(msg.Quantity)
		if err != nil {
			return nil, fmt.Errorf("feed: aggTrade quantity: %w", err)
		}
		return domain.TradeEvent{
			Symbol:          msg.Symbol,
			Price:           price,
			Quantity:        qty,
			SellerInitiated: msg.BuyerIsMaker,
			Time:            time.UnixMilli(msg.TradeTime).UTC(),
		}, nil

	case "depthUpdate":
		var msg depthUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("feed: decode depthUpdate: %w", err)
		}
		bids, err := parseLevels(msg.Bids)
		if err != nil {
			return nil, fmt.Errorf("feed: depthUpdate bids: %w", err)
		}
		asks, err := parseLevels(msg.Asks)
		if err != nil {
			return nil, fmt.Errorf("feed: depthUpdate asks: %w", err)
		}
		return domain.DepthEvent{
			Symbol: msg.Symbol,
			Bids:   bids,
			Asks:   asks,
			Time:   time.UnixMilli(msg.EventTime).UTC(),
		}, nil

	default:
		return nil, nil
	}
}

func parseLevels(pairs [][]string) ([]domain.PriceQty, error) {
	out := make([]domain.PriceQty, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			return nil, fmt.Errorf("level pair has %d fields", len(p))
		}
		price, err := parsePositive(p[0])
		if err != nil {
			return nil, fmt.Errorf("level price: %w", err)
		}
		qty, err := parseNonNegative(p[1])
		if err != nil {
			return nil, fmt.Errorf("level quantity: %w", err)
		}
		out = append(out, domain.PriceQty{Price: price, Quantity: qty})
	}
	return out, nil
}

// parsePositive parses a decimal string that must be finite and strictly
// positive. ParseFloat alone would admit "NaN", "Inf", and negative values,
// any of which would corrupt the book and the aggregated volumes downstream.
func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%q: out of range", s)
	}
	return v, nil
}

// parseNonNegative is parsePositive admitting zero, for depth quantities
// where zero means the level was removed.
func parseNonNegative(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%q: out of range", s)
	}
	return v, nil
}
