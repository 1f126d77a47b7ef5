// Package footprint aggregates executed trades into time-bucketed
// price/volume grids and keeps a bounded history of completed windows.
package footprint

import (
	"math"
	"time"
)

// BucketIndex maps a raw trade price to its discrete footprint row.
// Bucketing truncates toward the tick size rather than rounding, so a trade
// at 90130.75 with tick 1.0 lands in bucket 90130.
func BucketIndex(price, tick float64) int64 {
	return int64(math.Floor(price / tick))
}

// BucketPrice returns the lower-bound price of a bucket.
func BucketPrice(index int64, tick float64) float64 {
	return float64(index) * tick
}

// WindowStart truncates a timestamp to the start of its window in UTC.
func WindowStart(ts time.Time, granularity time.Duration) time.Time {
	return ts.UTC().Truncate(granularity)
}
