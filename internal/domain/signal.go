package domain

import "time"

// ImbalanceDirection labels which side dominates a run of price levels.
type ImbalanceDirection string

const (
	ImbalanceBuy  ImbalanceDirection = "buy"
	ImbalanceSell ImbalanceDirection = "sell"
)

// ImbalanceRun is a detected run of contiguous one-tick price buckets where
// the same side dominates at every level.
type ImbalanceRun struct {
	ID         string
	Prices     []float64
	Direction  ImbalanceDirection
	DetectedAt time.Time
}

// ZoneKind classifies a support/resistance zone.
type ZoneKind string

const (
	ZoneSupport    ZoneKind = "support"
	ZoneResistance ZoneKind = "resistance"
)

// SupportResistanceLevel is a merged high-volume price zone derived from
// footprint history. Strength is the zone's share of total history volume.
type SupportResistanceLevel struct {
	Price    float64
	Volume   float64
	Kind     ZoneKind
	Strength float64
}

// SignalAction is the direction suggested by a reversal signal.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalSell SignalAction = "SELL"
)

// ReversalSignal fires when price approaches a support/resistance zone and the
// current window's order flow opposes the zone.
type ReversalSignal struct {
	ID             string
	Action         SignalAction
	Price          float64
	ZonePrice      float64
	ZoneKind       ZoneKind
	ZoneStrength   float64
	ImbalanceRatio float64
	DetectedAt     time.Time
}
