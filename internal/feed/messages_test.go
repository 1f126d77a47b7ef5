package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketglass/footprintd/internal/domain"
)

func TestDecodeAggTrade(t *testing.T) {
	raw := []byte(`{"e":"aggTrade","E":1756100000100,"s":"BTCUSDT","a":12345,"p":"65432.10","q":"0.250","T":1756100000000,"m":true}`)

	ev, err := DecodeMessage(raw)
	require.NoError(t, err)
	trade, ok := ev.(domain.TradeEvent)
	require.True(t, ok)

	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, 65432.10, trade.Price)
	assert.Equal(t, 0.25, trade.Quantity)
	assert.True(t, trade.SellerInitiated)
	assert.Equal(t, time.UnixMilli(1756100000000).UTC(), trade.Time)
	assert.Equal(t, trade.Time, trade.EventTime())
}

func TestDecodeDepthUpdate(t *testing.T) {
	raw := []byte(`{"e":"depthUpdate","E":1756100000200,"s":"BTCUSDT","b":[["65430.00","1.5"],["65429.50","0"]],"a":[["65431.00","2.0"]]}`)

	ev, err := DecodeMessage(raw)
	require.NoError(t, err)
	depth, ok := ev.(domain.DepthEvent)
	require.True(t, ok)

	require.Len(t, depth.Bids, 2)
	assert.Equal(t, domain.PriceQty{Price: 65430.00, Quantity: 1.5}, depth.Bids[0])
	assert.Equal(t, domain.PriceQty{Price: 65429.50, Quantity: 0}, depth.Bids[1])
	require.Len(t, depth.Asks, 1)
	assert.Equal(t, domain.PriceQty{Price: 65431.00, Quantity: 2.0}, depth.Asks[0])
	assert.Equal(t, time.UnixMilli(1756100000200).UTC(), depth.Time)
}

func TestDecodeUnknownEventIgnored(t *testing.T) {
	for _, raw := range []string{
		`{"result":null,"id":1}`,
		`{"e":"markPriceUpdate","s":"BTCUSDT"}`,
	} {
		ev, err := DecodeMessage([]byte(raw))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	}
}

func TestDecodeMalformedFramesRejected(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{`,
		"bad trade price":  `{"e":"aggTrade","p":"not-a-number","q":"1","T":1}`,
		"bad trade qty":    `{"e":"aggTrade","p":"1.0","q":"x","T":1}`,
		"short depth pair": `{"e":"depthUpdate","b":[["65430.00"]],"a":[]}`,
		"bad depth price":  `{"e":"depthUpdate","b":[["oops","1"]],"a":[]}`,
	}
	for name, raw := range cases {
		ev, err := DecodeMessage([]byte(raw))
		assert.Error(t, err, name)
		assert.Nil(t, ev, name)
	}
}

func TestDecodeRejectsOutOfRangeValues(t *testing.T) {
	// ParseFloat accepts all of these; the decoder must not, or garbled
	// frames would drive volumes negative downstream.
	cases := map[string]string{
		"negative trade qty":   `{"e":"aggTrade","s":"BTCUSDT","p":"65432.10","q":"-0.25","T":1756100000000}`,
		"zero trade qty":       `{"e":"aggTrade","s":"BTCUSDT","p":"65432.10","q":"0","T":1756100000000}`,
		"negative trade price": `{"e":"aggTrade","s":"BTCUSDT","p":"-1","q":"0.25","T":1756100000000}`,
		"nan trade price":      `{"e":"aggTrade","s":"BTCUSDT","p":"NaN","q":"0.25","T":1756100000000}`,
		"inf trade qty":        `{"e":"aggTrade","s":"BTCUSDT","p":"65432.10","q":"Inf","T":1756100000000}`,
		"negative depth qty":   `{"e":"depthUpdate","s":"BTCUSDT","b":[["65430.00","-1.5"]],"a":[]}`,
		"zero depth price":     `{"e":"depthUpdate","s":"BTCUSDT","b":[["0","1.5"]],"a":[]}`,
		"nan depth qty":        `{"e":"depthUpdate","s":"BTCUSDT","b":[],"a":[["65431.00","NaN"]]}`,
	}
	for name, raw := range cases {
		ev, err := DecodeMessage([]byte(raw))
		assert.Error(t, err, name)
		assert.Nil(t, ev, name)
	}
}

func TestDecodeDepthZeroQuantityAccepted(t *testing.T) {
	raw := []byte(`{"e":"depthUpdate","E":1756100000200,"s":"BTCUSDT","b":[["65429.50","0"]],"a":[]}`)

	ev, err := DecodeMessage(raw)
	require.NoError(t, err)
	depth, ok := ev.(domain.DepthEvent)
	require.True(t, ok)
	require.Len(t, depth.Bids, 1)
	assert.Zero(t, depth.Bids[0].Quantity)
}
