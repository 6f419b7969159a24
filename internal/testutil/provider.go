package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/contactkeval/option-snapshot/internal/data"
)

// FakeProvider is a scripted data.Provider. Zero values answer with empty
// data and no error; an expiration missing from Chains answers ErrNoData.
type FakeProvider struct {
	Quote    data.Quote
	QuoteErr error

	Bars    []data.Bar
	BarsErr error

	Expirations    []data.Expiration
	ExpirationsErr error

	Chains    map[data.Expiration]*data.OptionChain
	ChainErrs map[data.Expiration]error

	// PanicOn names an operation ("quote", "bars", "expirations", "chain")
	// that panics instead of answering.
	PanicOn string

	mu    sync.Mutex
	calls []string
}

func (f *FakeProvider) Name() string             { return "fake" }
func (f *FakeProvider) Secondary() data.Provider { return nil }

// Calls lists the operations served so far, e.g. "chain 2025-01-17".
func (f *FakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeProvider) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	if f.PanicOn != "" && strings.HasPrefix(op, f.PanicOn) {
		panic("fake provider: " + op)
	}
}

func (f *FakeProvider) GetQuote(_ context.Context, _ string) (data.Quote, error) {
	f.record("quote")
	return f.Quote, f.QuoteErr
}

func (f *FakeProvider) GetDailyBars(_ context.Context, _ string, _, _ time.Time) ([]data.Bar, error) {
	f.record("bars")
	return f.Bars, f.BarsErr
}

func (f *FakeProvider) GetExpirations(_ context.Context, _ string) ([]data.Expiration, error) {
	f.record("expirations")
	return f.Expirations, f.ExpirationsErr
}

func (f *FakeProvider) GetOptionChain(_ context.Context, symbol string, expiration data.Expiration) (*data.OptionChain, error) {
	f.record("chain " + string(expiration))
	if err := f.ChainErrs[expiration]; err != nil {
		return nil, err
	}
	chain, ok := f.Chains[expiration]
	if !ok {
		return nil, fmt.Errorf("chain %s %s: %w", symbol, expiration, data.ErrNoData)
	}
	return chain, nil
}

// Record builds a raw record from plain numbers; NaN marks a missing field.
func Record(strike, iv, oi, volume, bid, ask, last float64) data.RawOptionRecord {
	return data.RawOptionRecord{
		Strike:            data.Num(strike),
		ImpliedVolatility: data.Num(iv),
		OpenInterest:      data.Num(oi),
		Volume:            data.Num(volume),
		Bid:               data.Num(bid),
		Ask:               data.Num(ask),
		LastPrice:         data.Num(last),
	}
}
