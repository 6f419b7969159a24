// Package snapshot runs one option chain snapshot end to end: spot and
// rows from the assembler, metrics over the rows, and the result document.
package snapshot

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contactkeval/option-snapshot/internal/chain"
	"github.com/contactkeval/option-snapshot/internal/data"
	"github.com/contactkeval/option-snapshot/internal/logger"
	"github.com/contactkeval/option-snapshot/internal/metrics"
	"github.com/contactkeval/option-snapshot/internal/report"
)

// Request describes one snapshot.
type Request struct {
	Symbol   string
	MaxDays  float64
	Expiries int
}

type Runner struct {
	provider data.Provider
	now      func() time.Time
}

func NewRunner(provider data.Provider) *Runner {
	return &Runner{provider: provider, now: time.Now}
}

// WithClock replaces the wall clock used for time-to-maturity and
// fetched_at.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run always returns a document. Invalid requests and panics yield the
// degenerate document; partial provider failures yield partial data.
func (r *Runner) Run(ctx context.Context, req Request) (doc *report.Document) {
	runID := uuid.NewString()
	logger.WithField("run", runID)
	defer logger.Reset()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("snapshot aborted: %v", rec)
			doc = report.Empty(r.now())
		}
	}()

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		logger.Errorf("snapshot: symbol is required")
		return report.Empty(r.now())
	}
	if math.IsNaN(req.MaxDays) || req.MaxDays <= 0 {
		logger.Errorf("snapshot: max days must be positive, got %v", req.MaxDays)
		return report.Empty(r.now())
	}
	if r.provider == nil {
		logger.Errorf("snapshot: no data provider")
		return report.Empty(r.now())
	}

	now := r.now()
	logger.Infof("snapshot %s provider=%s max_days=%g expiries=%d", symbol, r.provider.Name(), req.MaxDays, req.Expiries)

	spot, rows, stats := chain.NewAssembler(r.provider).Assemble(ctx, symbol, req.MaxDays, req.Expiries, now)
	m := metrics.Compute(spot, rows)

	logger.Infof(
		"snapshot %s: expirations available=%d selected=%d fetched=%d skipped=%d rows=%d rejected=%v spot=%v",
		symbol, stats.Available, stats.Selected, stats.Fetched, stats.Skipped, stats.Accepted, stats.Rejected, spot != nil,
	)

	return report.New(spot, rows, m, r.now())
}
