package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contactkeval/option-snapshot/internal/config"
	"github.com/contactkeval/option-snapshot/internal/data"
	"github.com/contactkeval/option-snapshot/internal/logger"
)

// spotLookback is how far back daily bars are read when the quote has no
// usable price. A week spans weekends and market holidays.
const spotLookback = 7 * 24 * time.Hour

// Stats summarises one assembly run for diagnostics.
type Stats struct {
	Available int
	Selected  int
	Fetched   int
	Skipped   int
	Accepted  int
	Rejected  map[string]int
}

// Assembler drives expiration selection, chain retrieval and record
// normalization against a single Provider.
type Assembler struct {
	provider data.Provider
}

func NewAssembler(provider data.Provider) *Assembler {
	return &Assembler{provider: provider}
}

// Assemble resolves the spot price and builds the row set for the nearest
// targetCount expirations within maxDays of now. targetCount is clamped into
// [config.MinExpiries, config.MaxExpiries].
//
// Provider failures never surface: a missing spot yields nil, a failed
// expiration listing yields no rows and a failed chain fetch skips only that
// expiration.
func (a *Assembler) Assemble(ctx context.Context, symbol string, maxDays float64, targetCount int, now time.Time) (*float64, []Row, Stats) {
	stats := Stats{Rejected: map[string]int{}}
	rows := []Row{}

	spot := a.ResolveSpot(ctx, symbol, now)

	available, err := call(func() ([]data.Expiration, error) {
		return a.provider.GetExpirations(ctx, symbol)
	})
	if err != nil {
		logger.Errorf("expirations for %s: %v", symbol, err)
		return spot, rows, stats
	}
	stats.Available = len(available)

	selected := SelectExpirations(available, now, maxDays, config.ClampExpiries(targetCount))
	stats.Selected = len(selected)
	logger.Debugf("selected %d of %d expirations for %s", len(selected), len(available), symbol)

	for _, exp := range selected {
		chain, err := call(func() (*data.OptionChain, error) {
			return a.provider.GetOptionChain(ctx, symbol, exp.Raw)
		})
		if err == nil && chain == nil {
			err = fmt.Errorf("chain %s: %w", exp.Raw, data.ErrNoData)
		}
		if err != nil {
			logger.Errorf("skipping expiration %s for %s: %v", exp.Raw, symbol, err)
			stats.Skipped++
			continue
		}
		stats.Fetched++

		rows = a.appendSide(rows, chain.Calls, Call, exp, maxDays, &stats)
		rows = a.appendSide(rows, chain.Puts, Put, exp, maxDays, &stats)
	}

	return spot, rows, stats
}

func (a *Assembler) appendSide(rows []Row, records []data.RawOptionRecord, side Side, exp SelectedExpiration, maxDays float64, stats *Stats) []Row {
	for _, raw := range records {
		row, err := Normalize(raw, side, exp, maxDays)
		if err != nil {
			stats.Rejected[RejectReason(err)]++
			logger.Tracef("%v", err)
			continue
		}
		stats.Accepted++
		rows = append(rows, row)
	}
	return rows
}

// ResolveSpot returns the quote's regular market price, else its current
// price, else the most recent daily close of the past week, else nil.
func (a *Assembler) ResolveSpot(ctx context.Context, symbol string, now time.Time) *float64 {
	quote, err := call(func() (data.Quote, error) {
		return a.provider.GetQuote(ctx, symbol)
	})
	if err != nil {
		logger.Debugf("quote for %s: %v", symbol, err)
	}
	for _, n := range []data.Number{quote.RegularMarketPrice, quote.CurrentPrice} {
		if v, ok := n.Float(); ok && v > 0 {
			return &v
		}
	}

	bars, err := call(func() ([]data.Bar, error) {
		return a.provider.GetDailyBars(ctx, symbol, now.Add(-spotLookback), now)
	})
	if err != nil {
		logger.Debugf("daily bars for %s: %v", symbol, err)
		return nil
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if c := bars[i].Close; c > 0 {
			return &c
		}
	}

	logger.Infof("no usable spot price for %s", symbol)
	return nil
}

// RejectReason maps a Normalize error to a short counter key.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidIV):
		return "iv"
	case errors.Is(err, ErrNegativeOpenInterest):
		return "oi"
	case errors.Is(err, ErrInvalidStrike):
		return "strike"
	case errors.Is(err, ErrOutOfWindow):
		return "window"
	default:
		return "other"
	}
}

// call runs one provider request, turning a panic into an error so that a
// misbehaving provider costs at most the current step.
func call[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return fn()
}
