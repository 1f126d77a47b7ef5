// Package signal derives order-flow analytics from footprint state:
// consecutive-level imbalance runs, support/resistance zones, and reversal
// signals.
package signal

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marketglass/footprintd/internal/domain"
	"github.com/marketglass/footprintd/internal/footprint"
)

// Config holds the analyzer thresholds.
type Config struct {
	Tick           float64 // price bucket size, must match the aggregator
	RunLength      int     // contiguous levels required for an imbalance run
	ImbalanceRatio float64 // dominant side must exceed ratio x other side
	VolumeShare    float64 // bucket volume share of history to be significant
	MergeRange     float64 // price distance for merging adjacent zones
	Proximity      float64 // distance from close to a zone for reversal checks
	ReversalRatio  float64 // opposing volume ratio for a reversal signal
}

// Analyzer computes derived signals. It only reads the windows handed to it
// and never mutates them.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Analyzer.
func New(cfg Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "analyzer")),
	}
}

// ConsecutiveImbalance scans the window's price buckets in ascending order
// for RunLength contiguous one-tick levels that are all imbalanced in the
// same direction. A level is imbalanced when one side's volume exceeds
// ImbalanceRatio times the other side's and the smaller side is positive.
// It reports the first run found, or nil.
func (a *Analyzer) ConsecutiveImbalance(win *domain.FootprintWindow) *domain.ImbalanceRun {
	if win == nil || len(win.Levels) < a.cfg.RunLength {
		return nil
	}

	indices := make([]int64, 0, len(win.Levels))
	for idx := range win.Levels {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	run := a.cfg.RunLength
	for i := 0; i+run <= len(indices); i++ {
		if indices[i+run-1] != indices[i]+int64(run-1) {
			continue
		}
		dir := a.levelDirection(win.Levels[indices[i]])
		if dir == "" {
			continue
		}
		matched := true
		for j := 1; j < run; j++ {
			if a.levelDirection(win.Levels[indices[i+j]]) != dir {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		prices := make([]float64, run)
		for j := 0; j < run; j++ {
			prices[j] = footprint.BucketPrice(indices[i+j], a.cfg.Tick)
		}
		found := &domain.ImbalanceRun{
			ID:         uuid.NewString(),
			Prices:     prices,
			Direction:  dir,
			DetectedAt: time.Now().UTC(),
		}
		a.logger.Debug("consecutive imbalance detected",
			slog.Float64("first_price", prices[0]),
			slog.String("direction", string(dir)),
		)
		return found
	}
	return nil
}

// levelDirection classifies a single bucket, or returns "" when neither side
// dominates past the ratio.
func (a *Analyzer) levelDirection(flow domain.LevelFlow) domain.ImbalanceDirection {
	switch {
	case flow.SellVolume > 0 && flow.BuyVolume > a.cfg.ImbalanceRatio*flow.SellVolume:
		return domain.ImbalanceBuy
	case flow.BuyVolume > 0 && flow.SellVolume > a.cfg.ImbalanceRatio*flow.BuyVolume:
		return domain.ImbalanceSell
	default:
		return ""
	}
}

// bucketVolume is the per-bucket aggregate used by SupportResistance.
type bucketVolume struct {
	index int64
	buy   float64
	sell  float64
}

func (b bucketVolume) total() float64 { return b.buy + b.sell }

// SupportResistance aggregates executed volume per price bucket across the
// given history, keeps buckets holding at least VolumeShare of the total,
// classifies them by dominant side, and greedily merges adjacent significant
// buckets within MergeRange of the zone's anchor price. Zones come back in
// ascending price order.
func (a *Analyzer) SupportResistance(history []*domain.FootprintWindow) []domain.SupportResistanceLevel {
	if len(history) == 0 {
		return nil
	}

	byBucket := make(map[int64]bucketVolume)
	var totalVolume float64
	for _, win := range history {
		for idx, flow := range win.Levels {
			bv := byBucket[idx]
			bv.index = idx
			bv.buy += flow.BuyVolume
			bv.sell += flow.SellVolume
			byBucket[idx] = bv
		}
	}
	for _, bv := range byBucket {
		totalVolume += bv.total()
	}
	if totalVolume <= 0 {
		return nil
	}

	threshold := totalVolume * a.cfg.VolumeShare
	significant := make([]bucketVolume, 0, len(byBucket))
	for _, bv := range byBucket {
		if bv.total() >= threshold {
			significant = append(significant, bv)
		}
	}
	sort.Slice(significant, func(i, j int) bool {
		return significant[i].index < significant[j].index
	})

	var zones []domain.SupportResistanceLevel
	for i := 0; i < len(significant); {
		anchor := footprint.BucketPrice(significant[i].index, a.cfg.Tick)
		mergedVolume := significant[i].total()
		weightedBuy := a.buyRatio(significant[i]) * significant[i].total()

		j := i + 1
		for j < len(significant) &&
			footprint.BucketPrice(significant[j].index, a.cfg.Tick)-anchor <= a.cfg.MergeRange {
			mergedVolume += significant[j].total()
			weightedBuy += a.buyRatio(significant[j]) * significant[j].total()
			j++
		}

		kind := domain.ZoneResistance
		if weightedBuy/mergedVolume > 0.5 {
			kind = domain.ZoneSupport
		}
		zones = append(zones, domain.SupportResistanceLevel{
			Price:    anchor,
			Volume:   mergedVolume,
			Kind:     kind,
			Strength: mergedVolume / totalVolume,
		})
		i = j
	}
	return zones
}

func (a *Analyzer) buyRatio(bv bucketVolume) float64 {
	total := bv.total()
	if total <= 0 {
		return 0
	}
	return bv.buy / total
}

// ReversalSignal checks the current window against the given zones and
// returns the first qualifying rejection: price falling into resistance with
// dominant buying (BUY), or price rising into support with dominant selling
// (SELL). Zones are evaluated in the order produced by SupportResistance.
func (a *Analyzer) ReversalSignal(current *domain.FootprintWindow, zones []domain.SupportResistanceLevel) *domain.ReversalSignal {
	if current == nil || !current.Opened {
		return nil
	}

	priceChange := current.Close - current.Open
	for _, zone := range zones {
		if math.Abs(current.Close-zone.Price) > a.cfg.Proximity {
			continue
		}

		if zone.Kind == domain.ZoneResistance && priceChange < 0 {
			if current.SellVolume > 0 && current.BuyVolume/current.SellVolume > a.cfg.ReversalRatio {
				return a.reversal(domain.SignalBuy, current, zone, current.BuyVolume/current.SellVolume)
			}
		}
		if zone.Kind == domain.ZoneSupport && priceChange > 0 {
			if current.BuyVolume > 0 && current.SellVolume/current.BuyVolume > a.cfg.ReversalRatio {
				return a.reversal(domain.SignalSell, current, zone, current.SellVolume/current.BuyVolume)
			}
		}
	}
	return nil
}

func (a *Analyzer) reversal(action domain.SignalAction, win *domain.FootprintWindow, zone domain.SupportResistanceLevel, ratio float64) *domain.ReversalSignal {
	sig := &domain.ReversalSignal{
		ID:             uuid.NewString(),
		Action:         action,
		Price:          win.Close,
		ZonePrice:      zone.Price,
		ZoneKind:       zone.Kind,
		ZoneStrength:   zone.Strength,
		ImbalanceRatio: ratio,
		DetectedAt:     time.Now().UTC(),
	}
	a.logger.Debug("reversal signal detected",
		slog.String("action", string(action)),
		slog.Float64("price", sig.Price),
		slog.Float64("zone_price", zone.Price),
		slog.Float64("ratio", ratio),
	)
	return sig
}
