// This file contains a Massive-backed Provider implementation that
// retrieves quotes, bars, expirations and option chain snapshots through
// the Massive (formerly Polygon.io) REST client.
//
// Design notes:
//   - Expirations come from the options contracts reference listing,
//     deduplicated and sorted ascending
//   - Chains come from the options chain snapshot, filtered to a single
//     expiration and split by contract type
//   - Logging is intentionally verbose at Debug/Trace levels for diagnostics
package data

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	massive "github.com/massive-com/client-go/v2/rest"
	"github.com/massive-com/client-go/v2/rest/models"

	"github.com/contactkeval/option-snapshot/internal/config"
	"github.com/contactkeval/option-snapshot/internal/logger"
)

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// client is the Massive REST client; it handles pagination of list
	// endpoints.
	client *massive.Client

	// secondary is an optional fallback provider.
	secondary Provider

	now func() time.Time
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// The HTTP client is configured with the timeout from cfg plus
// connection pooling and HTTP/2 defaults.
func NewMassiveDataProvider(cfg config.MassiveConfig, secondary Provider) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	hc := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	return &massiveDataProvider{
		client:    massive.NewWithClient(cfg.APIKey, hc),
		secondary: secondary,
		now:       time.Now,
	}
}

// WithClock pins the provider's notion of "now".
func (massiveDataProv *massiveDataProvider) WithClock(now func() time.Time) *massiveDataProvider {
	massiveDataProv.now = now
	return massiveDataProv
}

// expirationCutoff is the start of the current UTC day; contracts expiring
// before it are not listed.
func (massiveDataProv *massiveDataProvider) expirationCutoff() time.Time {
	return massiveDataProv.now().UTC().Truncate(24 * time.Hour)
}

func (massiveDataProv *massiveDataProvider) Name() string { return "massive" }

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetQuote reads the stock ticker snapshot. The last trade price maps to
// the regular market price and the session close to the current price.
func (massiveDataProv *massiveDataProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	q, err := massiveDataProv.quote(ctx, symbol)
	return delegate(massiveDataProv, "quote", q, err, func(s Provider) (Quote, error) {
		return s.GetQuote(ctx, symbol)
	})
}

func (massiveDataProv *massiveDataProvider) quote(ctx context.Context, symbol string) (Quote, error) {
	logger.Debugf("ticker snapshot request: %s", symbol)

	res, err := massiveDataProv.client.GetTickerSnapshot(ctx, &models.GetTickerSnapshotParams{
		Ticker:     symbol,
		Locale:     models.US,
		MarketType: models.Stocks,
	})
	if err != nil {
		return Quote{}, fmt.Errorf("massive ticker snapshot: %w", err)
	}

	return Quote{
		RegularMarketPrice: Num(res.Snapshot.LastTrade.Price),
		CurrentPrice:       Num(res.Snapshot.Day.Close),
	}, nil
}

// GetDailyBars retrieves daily aggregates for the given range.
func (massiveDataProv *massiveDataProvider) GetDailyBars(ctx context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	bars, err := massiveDataProv.dailyBars(ctx, symbol, fromDate, toDate)
	return delegate(massiveDataProv, "daily bars", bars, err, func(s Provider) ([]Bar, error) {
		return s.GetDailyBars(ctx, symbol, fromDate, toDate)
	})
}

func (massiveDataProv *massiveDataProvider) dailyBars(ctx context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		symbol,
		fromDate.Format("2006-01-02"),
		toDate.Format("2006-01-02"),
	)

	iter := massiveDataProv.client.ListAggs(ctx, &models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(fromDate),
		To:         models.Millis(toDate),
	})

	var out []Bar
	for iter.Next() {
		agg := iter.Item()
		out = append(out, Bar{
			Date:  time.Time(agg.Timestamp).UTC(),
			Open:  agg.Open,
			High:  agg.High,
			Low:   agg.Low,
			Close: agg.Close,
			Vol:   agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("massive aggregates: %w", err)
	}

	logger.Tracef("bars received: %d records", len(out))
	return out, nil
}

// GetExpirations returns the sorted, unique expiration dates of the active
// contracts listed for symbol.
func (massiveDataProv *massiveDataProvider) GetExpirations(ctx context.Context, symbol string) ([]Expiration, error) {
	exps, err := massiveDataProv.expirations(ctx, symbol)
	return delegate(massiveDataProv, "expirations", exps, err, func(s Provider) ([]Expiration, error) {
		return s.GetExpirations(ctx, symbol)
	})
}

func (massiveDataProv *massiveDataProvider) expirations(ctx context.Context, symbol string) ([]Expiration, error) {
	today := massiveDataProv.expirationCutoff()
	params := models.ListOptionsContractsParams{}.
		WithUnderlyingTicker(models.EQ, symbol).
		WithExpirationDate(models.GTE, models.Date(today)).
		WithLimit(1000)

	iter := massiveDataProv.client.ListOptionsContracts(ctx, params)

	expiryMap := map[Expiration]struct{}{}
	for iter.Next() {
		c := iter.Item()
		expiryMap[ExpirationFromTime(time.Time(c.ExpirationDate))] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("massive contracts: %w", err)
	}

	out := make([]Expiration, 0, len(expiryMap))
	for e := range expiryMap {
		out = append(out, e)
	}
	// YYYY-MM-DD sorts chronologically as text
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	logger.Debugf("resolved %d unique expiries for %s", len(out), symbol)
	return out, nil
}

// GetOptionChain retrieves the chain snapshot for one expiration.
func (massiveDataProv *massiveDataProvider) GetOptionChain(ctx context.Context, symbol string, expiration Expiration) (*OptionChain, error) {
	chain, err := massiveDataProv.optionChain(ctx, symbol, expiration)
	return delegate(massiveDataProv, "option chain", chain, err, func(s Provider) (*OptionChain, error) {
		return s.GetOptionChain(ctx, symbol, expiration)
	})
}

func (massiveDataProv *massiveDataProvider) optionChain(ctx context.Context, symbol string, expiration Expiration) (*OptionChain, error) {
	expiry, err := expiration.UTC()
	if err != nil {
		return nil, err
	}

	params := models.ListOptionsChainParams{UnderlyingAsset: symbol}.
		WithExpirationDate(models.EQ, models.Date(expiry)).
		WithLimit(250)

	iter := massiveDataProv.client.ListOptionsChainSnapshot(ctx, params)

	chain := &OptionChain{Expiration: expiration}
	for iter.Next() {
		snap := iter.Item()
		switch strings.ToLower(snap.Details.ContractType) {
		case "call":
			chain.Calls = append(chain.Calls, recordFromSnapshot(snap))
		case "put":
			chain.Puts = append(chain.Puts, recordFromSnapshot(snap))
		default:
			logger.Tracef("skipping contract %s with type %q", snap.Details.Ticker, snap.Details.ContractType)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("massive chain snapshot: %w", err)
	}

	logger.Tracef("chain %s %s: %d calls %d puts", symbol, expiration, len(chain.Calls), len(chain.Puts))
	return chain, nil
}

// recordFromSnapshot maps a contract snapshot to a raw record. Massive
// reports absent values as zero; the normalizer treats zero iv and strike
// as unusable and zero prices as unknown, so no information is lost.
func recordFromSnapshot(snap models.OptionContractSnapshot) RawOptionRecord {
	return RawOptionRecord{
		Strike:            Num(snap.Details.StrikePrice),
		ImpliedVolatility: Num(snap.ImpliedVolatility),
		OpenInterest:      Num(snap.OpenInterest),
		Volume:            Num(snap.Day.Volume),
		Bid:               Num(snap.LastQuote.Bid),
		Ask:               Num(snap.LastQuote.Ask),
		LastPrice:         Num(snap.LastTrade.Price),
	}
}
