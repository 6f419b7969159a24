// Package chain turns a provider's raw option chain into validated,
// flat rows bounded by a time-to-maturity window.
package chain

import (
	"math"
	"time"
)

// Side is the option type of a row.
type Side string

const (
	Call Side = "call"
	Put  Side = "put"
)

// ExpiryLayout is the ISO-8601 form of expiryUTC.
const ExpiryLayout = time.RFC3339

const secondsPerDay = 86400

// Row is one accepted contract.
type Row struct {
	ExpiryUTC string  `json:"expiryUTC" csv:"expiryUTC"`
	TTMDays   float64 `json:"ttmDays" csv:"ttmDays"`
	Strike    float64 `json:"strike" csv:"strike"`
	Type      Side    `json:"type" csv:"type"`
	IV        float64 `json:"iv" csv:"iv"`
	OI        int64   `json:"oi" csv:"oi"`
	Volume    int64   `json:"volume" csv:"volume"`
	Bid       float64 `json:"bid" csv:"bid"`
	Ask       float64 `json:"ask" csv:"ask"`
	LastPrice float64 `json:"lastPrice" csv:"lastPrice"`

	// Expiry is ExpiryUTC as a time, kept for comparisons.
	Expiry time.Time `json:"-" csv:"-"`
}

// TTMDays is the fractional number of days from now to expiry.
func TTMDays(expiry, now time.Time) float64 {
	return expiry.Sub(now).Seconds() / secondsPerDay
}

func inWindow(ttmDays, maxDays float64) bool {
	return ttmDays > 0 && ttmDays <= maxDays
}

// maxCount is the first float64 that no longer converts to int64.
const maxCount = float64(math.MaxInt64)

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round rounds half away from zero to the given number of decimal places.
// Values too large to scale come back as +Inf or -Inf; callers check Finite.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
