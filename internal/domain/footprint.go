package domain

import "time"

// LevelFlow is the executed volume at one price bucket within a window.
type LevelFlow struct {
	BuyVolume  float64 `json:"buy_volume"`
	SellVolume float64 `json:"sell_volume"`
	TradeCount int     `json:"trade_count"`
}

// FootprintWindow is one time bucket of aggregated order flow. OHLC fields
// are zero until the first trade arrives; Opened reports whether the window
// has seen a trade. Levels is keyed by bucket index (floor(price/tick)).
type FootprintWindow struct {
	Start       time.Time           `json:"start"`
	Open        float64             `json:"open"`
	High        float64             `json:"high"`
	Low         float64             `json:"low"`
	Close       float64             `json:"close"`
	TotalVolume float64             `json:"total_volume"`
	BuyVolume   float64             `json:"buy_volume"`
	SellVolume  float64             `json:"sell_volume"`
	Delta       float64             `json:"delta"`
	Levels      map[int64]LevelFlow `json:"levels"`
	Opened      bool                `json:"opened"`
}

// NewFootprintWindow returns an empty window for the given start time.
func NewFootprintWindow(start time.Time) *FootprintWindow {
	return &FootprintWindow{
		Start:  start,
		Levels: make(map[int64]LevelFlow),
	}
}

// Clone returns a deep copy. Archived windows are always clones so that the
// live window can keep mutating without aliasing history.
func (w *FootprintWindow) Clone() *FootprintWindow {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Levels = make(map[int64]LevelFlow, len(w.Levels))
	for k, v := range w.Levels {
		cp.Levels[k] = v
	}
	return &cp
}
