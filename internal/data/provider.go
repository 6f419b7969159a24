// Package data provides market data provider implementations.
//
// A Provider answers four questions for a symbol: the live quote, recent
// daily bars, the listed option expirations, and the raw option chain for
// one expiration. Providers may chain to a secondary provider that is
// consulted when their own call fails.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contactkeval/option-snapshot/internal/config"
	"github.com/contactkeval/option-snapshot/internal/logger"
)

// Provider supplies market data
type Provider interface {
	Name() string
	Secondary() Provider
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetDailyBars(ctx context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error)
	GetExpirations(ctx context.Context, symbol string) ([]Expiration, error)
	GetOptionChain(ctx context.Context, symbol string, expiration Expiration) (*OptionChain, error)
}

// ErrNoData is returned when a provider has nothing for the request.
var ErrNoData = errors.New("no data")

const expirationLayout = "2006-01-02"

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// Quote carries the live price fields a provider may expose.
type Quote struct {
	RegularMarketPrice Number
	CurrentPrice       Number
}

// Expiration is a provider's expiration identifier, a calendar date in
// YYYY-MM-DD form interpreted as midnight UTC.
type Expiration string

// ExpirationFromTime formats the UTC calendar date of t.
func ExpirationFromTime(t time.Time) Expiration {
	return Expiration(t.UTC().Format(expirationLayout))
}

// UTC returns midnight UTC of the expiration date.
func (e Expiration) UTC() (time.Time, error) {
	t, err := time.Parse(expirationLayout, string(e))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration %q: %w", string(e), err)
	}
	return t.UTC(), nil
}

// RawOptionRecord is one provider row for one expiration and side.
// Every field may be missing or non-numeric.
type RawOptionRecord struct {
	Strike            Number
	ImpliedVolatility Number
	OpenInterest      Number
	Volume            Number
	Bid               Number
	Ask               Number
	LastPrice         Number
}

// OptionChain holds the raw calls and puts for one expiration in provider order.
type OptionChain struct {
	Expiration Expiration
	Calls      []RawOptionRecord
	Puts       []RawOptionRecord
}

// HTTPError is returned by the HTTP-backed providers on a non-2xx response.
type HTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// New builds the primary provider named in cfg, wired to the secondary one
// when configured.
func New(cfg *config.Config) (Provider, error) {
	var secondary Provider
	if cfg.Provider.Secondary != "" {
		var err error
		secondary, err = build(cfg.Provider.Secondary, cfg, nil)
		if err != nil {
			return nil, fmt.Errorf("secondary provider: %w", err)
		}
	}
	return build(cfg.Provider.Primary, cfg, secondary)
}

func build(name string, cfg *config.Config, secondary Provider) (Provider, error) {
	switch name {
	case "yahoo":
		return NewYahooDataProvider(cfg.Yahoo, secondary), nil
	case "massive":
		return NewMassiveDataProvider(cfg.Massive, secondary), nil
	case "local":
		return NewLocalFileDataProvider(cfg.Local.Dir, secondary), nil
	case "synthetic":
		return NewSyntheticProvider(cfg.Synthetic, secondary), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// delegate hands a failed call over to p's secondary provider, when one is
// configured. Successful results pass through untouched.
func delegate[T any](p Provider, op string, v T, err error, next func(Provider) (T, error)) (T, error) {
	if err == nil || p.Secondary() == nil {
		return v, err
	}
	logger.Debugf("%s %s failed, delegating to %s: %v", p.Name(), op, p.Secondary().Name(), err)
	return next(p.Secondary())
}
