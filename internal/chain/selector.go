package chain

import (
	"time"

	"github.com/contactkeval/option-snapshot/internal/data"
	"github.com/contactkeval/option-snapshot/internal/logger"
)

// SelectedExpiration is an expiration inside the window, with its
// time-to-maturity computed once for all of its rows.
type SelectedExpiration struct {
	Raw       data.Expiration
	ExpiryUTC time.Time
	TTMDays   float64
}

// SelectExpirations keeps, in provider order, the expirations with
// 0 < ttmDays <= maxDays, stopping at targetCount kept or after
// 2*targetCount candidates, whichever comes first. Unparsable identifiers
// use up a candidate slot.
func SelectExpirations(available []data.Expiration, now time.Time, maxDays float64, targetCount int) []SelectedExpiration {
	if targetCount <= 0 {
		return nil
	}

	limit := 2 * targetCount
	selected := make([]SelectedExpiration, 0, targetCount)
	for i, raw := range available {
		if i >= limit || len(selected) >= targetCount {
			break
		}

		expiry, err := raw.UTC()
		if err != nil {
			logger.Debugf("skipping expiration: %v", err)
			continue
		}

		ttm := TTMDays(expiry, now)
		if !inWindow(ttm, maxDays) {
			logger.Tracef("expiration %s outside window ttm=%.2f max=%.2f", raw, ttm, maxDays)
			continue
		}

		selected = append(selected, SelectedExpiration{Raw: raw, ExpiryUTC: expiry, TTMDays: ttm})
	}
	return selected
}
