package chain

import (
	"errors"
	"fmt"

	"github.com/contactkeval/option-snapshot/internal/data"
)

// Rejection reasons.
var (
	ErrInvalidIV            = errors.New("implied volatility missing or not positive")
	ErrNegativeOpenInterest = errors.New("open interest negative")
	ErrInvalidStrike        = errors.New("strike missing or not positive")
	ErrOutOfWindow          = errors.New("time to maturity outside window")
)

// RejectError explains why a raw record did not become a Row.
type RejectError struct {
	Side   Side
	Expiry data.Expiration
	Strike data.Number
	Reason error
}

func (e *RejectError) Error() string {
	if v, ok := e.Strike.Float(); ok {
		return fmt.Sprintf("reject %s %s strike=%g: %v", e.Side, e.Expiry, v, e.Reason)
	}
	return fmt.Sprintf("reject %s %s: %v", e.Side, e.Expiry, e.Reason)
}

func (e *RejectError) Unwrap() error { return e.Reason }

// Normalize validates one raw record and converts it into a Row.
//
// A record is accepted only when iv > 0, open interest >= 0 (missing,
// non-numeric or beyond int64 counts as 0), strike > 0 and
// 0 < ttmDays <= maxDays. Strike and iv must stay positive and finite after
// rounding. Volume and prices never reject:
// missing, non-numeric or non-positive values become 0.
func Normalize(raw data.RawOptionRecord, side Side, exp SelectedExpiration, maxDays float64) (Row, error) {
	reject := func(reason error) (Row, error) {
		return Row{}, &RejectError{Side: side, Expiry: exp.Raw, Strike: raw.Strike, Reason: reason}
	}

	iv, ok := raw.ImpliedVolatility.Float()
	if ok {
		iv = Round(iv, 4)
	}
	if !ok || !Finite(iv) || iv <= 0 {
		return reject(ErrInvalidIV)
	}

	var oi int64
	if v, ok := raw.OpenInterest.Float(); ok {
		if v < 0 {
			return reject(ErrNegativeOpenInterest)
		}
		if v < maxCount {
			oi = int64(v)
		}
	}

	strike, ok := raw.Strike.Float()
	if ok {
		strike = Round(strike, 2)
	}
	if !ok || !Finite(strike) || strike <= 0 {
		return reject(ErrInvalidStrike)
	}

	if !inWindow(exp.TTMDays, maxDays) {
		return reject(ErrOutOfWindow)
	}

	return Row{
		ExpiryUTC: exp.ExpiryUTC.Format(ExpiryLayout),
		TTMDays:   exp.TTMDays,
		Strike:    strike,
		Type:      side,
		IV:        iv,
		OI:        oi,
		Volume:    count(raw.Volume),
		Bid:       price(raw.Bid),
		Ask:       price(raw.Ask),
		LastPrice: price(raw.LastPrice),
		Expiry:    exp.ExpiryUTC,
	}, nil
}

// count truncates a non-negative value that fits in int64; anything else
// is 0.
func count(n data.Number) int64 {
	if v, ok := n.Float(); ok && v > 0 && v < maxCount {
		return int64(v)
	}
	return 0
}

// price rounds a positive value to cents; anything else, including a value
// too large to round, is 0.
func price(n data.Number) float64 {
	if v, ok := n.Float(); ok && v > 0 {
		if r := Round(v, 2); Finite(r) {
			return r
		}
	}
	return 0
}
