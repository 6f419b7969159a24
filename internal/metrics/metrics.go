// Package metrics derives the summary statistics of a snapshot from its
// spot price and rows: at-the-money implied volatility, the put/call
// volume ratio and the straddle-implied move, all scoped to the nearest
// expiration present in the rows.
package metrics

import (
	"math"
	"time"

	"github.com/contactkeval/option-snapshot/internal/chain"
	"github.com/contactkeval/option-snapshot/internal/logger"
)

// WindowExpiry tags a ratio computed over a single expiration.
const WindowExpiry = "expiry"

type ATMIV struct {
	Percent float64 `json:"percent"`
	Decimal float64 `json:"decimal"`
	Strike  float64 `json:"strike"`
}

type PutCallRatio struct {
	Ratio  float64 `json:"ratio"`
	Window string  `json:"window"`
}

type ImpliedMove struct {
	Abs    float64 `json:"abs"`
	Pct    float64 `json:"pct"`
	Expiry string  `json:"expiry"`
}

// Result holds the derived metrics. Each is nil when its inputs are
// insufficient.
type Result struct {
	ATMIV        *ATMIV
	PutCallRatio *PutCallRatio
	ImpliedMove  *ImpliedMove
}

// Compute derives all metrics. A nil spot or empty rows yields an empty
// Result.
func Compute(spot *float64, rows []chain.Row) Result {
	if spot == nil || len(rows) == 0 {
		return Result{}
	}

	nearest, expiryRows := nearestExpiry(rows)
	strike := atmStrike(expiryRows, *spot)
	call, put := legsAt(expiryRows, strike)

	res := Result{
		ATMIV:        atmIV(call, put, strike),
		PutCallRatio: putCallRatio(expiryRows),
		ImpliedMove:  impliedMove(call, put, *spot, nearest),
	}
	logger.Debugf("metrics: expiry=%s rows=%d atm=%.2f", nearest, len(expiryRows), strike)
	return res
}

// nearestExpiry returns the earliest expiryUTC in rows and the rows that
// carry it, in their original order.
func nearestExpiry(rows []chain.Row) (string, []chain.Row) {
	best := 0
	bestTime := expiryOf(rows[0])
	for i := 1; i < len(rows); i++ {
		if t := expiryOf(rows[i]); t.Before(bestTime) {
			best, bestTime = i, t
		}
	}

	var out []chain.Row
	for _, r := range rows {
		if expiryOf(r).Equal(bestTime) {
			out = append(out, r)
		}
	}
	return rows[best].ExpiryUTC, out
}

func expiryOf(r chain.Row) time.Time {
	if !r.Expiry.IsZero() {
		return r.Expiry
	}
	t, err := time.Parse(chain.ExpiryLayout, r.ExpiryUTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// atmStrike picks the strike closest to spot. On a tie the strike seen
// first wins.
func atmStrike(rows []chain.Row, spot float64) float64 {
	strike := rows[0].Strike
	dist := math.Abs(strike - spot)
	for _, r := range rows[1:] {
		if d := math.Abs(r.Strike - spot); d < dist {
			strike, dist = r.Strike, d
		}
	}
	return strike
}

// legsAt returns the first call and first put listed at strike.
func legsAt(rows []chain.Row, strike float64) (call, put *chain.Row) {
	for i := range rows {
		r := &rows[i]
		if r.Strike != strike {
			continue
		}
		switch {
		case r.Type == chain.Call && call == nil:
			call = r
		case r.Type == chain.Put && put == nil:
			put = r
		}
	}
	return call, put
}

func atmIV(call, put *chain.Row, strike float64) *ATMIV {
	var iv float64
	switch {
	case call != nil && put != nil:
		iv = (call.IV + put.IV) / 2
	case call != nil:
		iv = call.IV
	case put != nil:
		iv = put.IV
	default:
		return nil
	}
	res := &ATMIV{
		Percent: chain.Round(iv*100, 1),
		Decimal: chain.Round(iv, 4),
		Strike:  strike,
	}
	if !chain.Finite(res.Percent) || !chain.Finite(res.Decimal) {
		return nil
	}
	return res
}

func putCallRatio(rows []chain.Row) *PutCallRatio {
	// summed as floats so that many large volumes cannot wrap around
	var callVol, putVol float64
	for _, r := range rows {
		switch r.Type {
		case chain.Call:
			callVol += float64(r.Volume)
		case chain.Put:
			putVol += float64(r.Volume)
		}
	}
	if callVol <= 0 {
		return nil
	}
	ratio := chain.Round(putVol/callVol, 2)
	if !chain.Finite(ratio) {
		return nil
	}
	return &PutCallRatio{Ratio: ratio, Window: WindowExpiry}
}

func impliedMove(call, put *chain.Row, spot float64, expiry string) *ImpliedMove {
	if call == nil || put == nil {
		return nil
	}
	callMid, ok := mid(*call)
	if !ok {
		return nil
	}
	putMid, ok := mid(*put)
	if !ok {
		return nil
	}

	straddle := callMid + putMid
	move := &ImpliedMove{
		Abs:    chain.Round(straddle, 2),
		Expiry: expiry,
	}
	if spot > 0 {
		move.Pct = chain.Round(straddle/spot*100, 1)
	}
	if !chain.Finite(move.Abs) || !chain.Finite(move.Pct) {
		return nil
	}
	return move
}

// mid is the bid/ask midpoint when both sides are quoted, else the last
// traded price.
func mid(r chain.Row) (float64, bool) {
	if r.Bid > 0 && r.Ask > 0 {
		return (r.Bid + r.Ask) / 2, true
	}
	if r.LastPrice > 0 {
		return r.LastPrice, true
	}
	return 0, false
}
