package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/go-resty/resty/v2"

	"github.com/contactkeval/option-snapshot/internal/config"
	"github.com/contactkeval/option-snapshot/internal/logger"
)

// yahooDataProvider implements the Provider interface using the public
// Yahoo Finance JSON endpoints (the source behind the yfinance package).
//
// All request settings (base URL, user agent, extra headers, timeouts,
// retries) come from the config object passed at construction.
type yahooDataProvider struct {
	cfg     config.YahooConfig
	client  *resty.Client
	encoder *form.Encoder

	// crumb is the anti-CSRF token the options endpoint expects alongside
	// the session cookie. Fetched lazily once per provider.
	crumb        string
	crumbFetched bool

	// overview caches the first options page per symbol; it carries the
	// quote and the expiration list.
	overview map[string]*yahooOptionResult

	// secondary is an optional fallback provider.
	secondary Provider
}

// yahooOptionsQuery is encoded into the options endpoint query string.
type yahooOptionsQuery struct {
	Date  int64  `form:"date,omitempty"`
	Crumb string `form:"crumb,omitempty"`
}

// yahooChartQuery is encoded into the chart endpoint query string.
type yahooChartQuery struct {
	Period1  int64  `form:"period1"`
	Period2  int64  `form:"period2"`
	Interval string `form:"interval"`
	Crumb    string `form:"crumb,omitempty"`
}

type yahooContract struct {
	ContractSymbol    string `json:"contractSymbol"`
	Strike            Number `json:"strike"`
	LastPrice         Number `json:"lastPrice"`
	Bid               Number `json:"bid"`
	Ask               Number `json:"ask"`
	Volume            Number `json:"volume"`
	OpenInterest      Number `json:"openInterest"`
	ImpliedVolatility Number `json:"impliedVolatility"`
}

type yahooOptionResult struct {
	UnderlyingSymbol string  `json:"underlyingSymbol"`
	ExpirationDates  []int64 `json:"expirationDates"`
	Quote            struct {
		RegularMarketPrice Number `json:"regularMarketPrice"`
		CurrentPrice       Number `json:"currentPrice"`
	} `json:"quote"`
	Options []struct {
		ExpirationDate int64           `json:"expirationDate"`
		Calls          []yahooContract `json:"calls"`
		Puts           []yahooContract `json:"puts"`
	} `json:"options"`
}

type yahooOptionsResp struct {
	OptionChain struct {
		Result []yahooOptionResult `json:"result"`
		Error  *yahooError         `json:"error"`
	} `json:"optionChain"`
}

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []Number `json:"open"`
					High   []Number `json:"high"`
					Low    []Number `json:"low"`
					Close  []Number `json:"close"`
					Volume []Number `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// NewYahooDataProvider constructs a Yahoo-backed data provider.
func NewYahooDataProvider(cfg config.YahooConfig, secondary Provider) *yahooDataProvider {
	logger.Infof("initializing Yahoo data provider base=%s", cfg.BaseURL)

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("Accept", "application/json").
		SetHeaders(cfg.Headers)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
	})

	return &yahooDataProvider{
		cfg:       cfg,
		client:    client,
		encoder:   form.NewEncoder(),
		overview:  map[string]*yahooOptionResult{},
		secondary: secondary,
	}
}

func (yahooDataProv *yahooDataProvider) Name() string { return "yahoo" }

// Secondary returns the configured secondary Provider, if any.
func (yahooDataProv *yahooDataProvider) Secondary() Provider {
	return yahooDataProv.secondary
}

// GetQuote reads the live price fields from the options overview page.
func (yahooDataProv *yahooDataProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	q, err := yahooDataProv.quote(ctx, symbol)
	return delegate(yahooDataProv, "quote", q, err, func(s Provider) (Quote, error) {
		return s.GetQuote(ctx, symbol)
	})
}

func (yahooDataProv *yahooDataProvider) quote(ctx context.Context, symbol string) (Quote, error) {
	res, err := yahooDataProv.fetchOverview(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		RegularMarketPrice: res.Quote.RegularMarketPrice,
		CurrentPrice:       res.Quote.CurrentPrice,
	}, nil
}

// GetDailyBars retrieves daily OHLCV bars from the chart endpoint.
// Bars whose close is missing are dropped.
func (yahooDataProv *yahooDataProvider) GetDailyBars(ctx context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	bars, err := yahooDataProv.dailyBars(ctx, symbol, fromDate, toDate)
	return delegate(yahooDataProv, "daily bars", bars, err, func(s Provider) ([]Bar, error) {
		return s.GetDailyBars(ctx, symbol, fromDate, toDate)
	})
}

func (yahooDataProv *yahooDataProvider) dailyBars(ctx context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		symbol,
		fromDate.Format("2006-01-02"),
		toDate.Format("2006-01-02"),
	)

	query := yahooChartQuery{
		Period1:  fromDate.Unix(),
		Period2:  toDate.Unix(),
		Interval: "1d",
		Crumb:    yahooDataProv.ensureCrumb(ctx),
	}
	body, err := yahooDataProv.get(ctx, "/v8/finance/chart/{symbol}", symbol, &query)
	if err != nil {
		return nil, err
	}

	var chart yahooChartResp
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if e := chart.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo chart error %s: %s", e.Code, e.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart %s: %w", symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	series := result.Indicators.Quote[0]
	at := func(xs []Number, i int) float64 {
		if i < len(xs) {
			return xs[i].Value
		}
		return 0
	}

	out := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(series.Close) || !series.Close[i].Valid {
			continue
		}
		out = append(out, Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Open:  at(series.Open, i),
			High:  at(series.High, i),
			Low:   at(series.Low, i),
			Close: series.Close[i].Value,
			Vol:   at(series.Volume, i),
		})
	}

	logger.Tracef("bars received: %d records", len(out))
	return out, nil
}

// GetExpirations lists the expiration dates in the order Yahoo returns them.
func (yahooDataProv *yahooDataProvider) GetExpirations(ctx context.Context, symbol string) ([]Expiration, error) {
	exps, err := yahooDataProv.expirations(ctx, symbol)
	return delegate(yahooDataProv, "expirations", exps, err, func(s Provider) ([]Expiration, error) {
		return s.GetExpirations(ctx, symbol)
	})
}

func (yahooDataProv *yahooDataProvider) expirations(ctx context.Context, symbol string) ([]Expiration, error) {
	res, err := yahooDataProv.fetchOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]Expiration, 0, len(res.ExpirationDates))
	for _, ts := range res.ExpirationDates {
		out = append(out, ExpirationFromTime(time.Unix(ts, 0)))
	}
	return out, nil
}

// GetOptionChain retrieves the calls and puts for a single expiration.
func (yahooDataProv *yahooDataProvider) GetOptionChain(ctx context.Context, symbol string, expiration Expiration) (*OptionChain, error) {
	chain, err := yahooDataProv.optionChain(ctx, symbol, expiration)
	return delegate(yahooDataProv, "option chain", chain, err, func(s Provider) (*OptionChain, error) {
		return s.GetOptionChain(ctx, symbol, expiration)
	})
}

func (yahooDataProv *yahooDataProvider) optionChain(ctx context.Context, symbol string, expiration Expiration) (*OptionChain, error) {
	expiry, err := expiration.UTC()
	if err != nil {
		return nil, err
	}

	res, err := yahooDataProv.fetchOptions(ctx, symbol, expiry.Unix())
	if err != nil {
		return nil, err
	}

	chain := &OptionChain{Expiration: expiration}
	for _, opts := range res.Options {
		chain.Calls = append(chain.Calls, recordsFromYahoo(opts.Calls)...)
		chain.Puts = append(chain.Puts, recordsFromYahoo(opts.Puts)...)
	}

	logger.Tracef("chain %s %s: %d calls %d puts", symbol, expiration, len(chain.Calls), len(chain.Puts))
	return chain, nil
}

func recordsFromYahoo(contracts []yahooContract) []RawOptionRecord {
	out := make([]RawOptionRecord, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, RawOptionRecord{
			Strike:            c.Strike,
			ImpliedVolatility: c.ImpliedVolatility,
			OpenInterest:      c.OpenInterest,
			Volume:            c.Volume,
			Bid:               c.Bid,
			Ask:               c.Ask,
			LastPrice:         c.LastPrice,
		})
	}
	return out
}

func (yahooDataProv *yahooDataProvider) fetchOverview(ctx context.Context, symbol string) (*yahooOptionResult, error) {
	if res, ok := yahooDataProv.overview[symbol]; ok {
		return res, nil
	}
	res, err := yahooDataProv.fetchOptions(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	yahooDataProv.overview[symbol] = res
	return res, nil
}

// fetchOptions calls the options endpoint. date 0 asks for the nearest
// expiration together with the full expiration list.
func (yahooDataProv *yahooDataProvider) fetchOptions(ctx context.Context, symbol string, date int64) (*yahooOptionResult, error) {
	query := yahooOptionsQuery{Date: date, Crumb: yahooDataProv.ensureCrumb(ctx)}
	body, err := yahooDataProv.get(ctx, "/v7/finance/options/{symbol}", symbol, &query)
	if err != nil {
		return nil, err
	}

	var resp yahooOptionsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if e := resp.OptionChain.Error; e != nil {
		return nil, fmt.Errorf("yahoo options error %s: %s", e.Code, e.Description)
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("options %s: %w", symbol, ErrNoData)
	}
	return &resp.OptionChain.Result[0], nil
}

// get performs a GET against path with the symbol path parameter and the
// form-encoded query.
func (yahooDataProv *yahooDataProvider) get(ctx context.Context, path, symbol string, query any) ([]byte, error) {
	values, err := yahooDataProv.encoder.Encode(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	resp, err := yahooDataProv.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParamsFromValues(values).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("yahoo request %s: %w", path, err)
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			// stale crumb; fetch a new one on the next call
			yahooDataProv.crumb, yahooDataProv.crumbFetched = "", false
		}
		logger.Errorf("yahoo API error status=%d path=%s", resp.StatusCode(), path)
		return nil, &HTTPError{
			Provider:   yahooDataProv.Name(),
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
		}
	}

	return resp.Body(), nil
}

// ensureCrumb primes the session cookie and fetches the crumb once.
// Failure leaves the crumb empty; endpoints that accept anonymous calls
// still work.
func (yahooDataProv *yahooDataProvider) ensureCrumb(ctx context.Context) string {
	if yahooDataProv.crumbFetched || yahooDataProv.cfg.CrumbURL == "" {
		return yahooDataProv.crumb
	}
	yahooDataProv.crumbFetched = true

	if yahooDataProv.cfg.CookieURL != "" {
		// the cookie endpoint answers 404 but still sets the session cookie
		_, _ = yahooDataProv.client.R().SetContext(ctx).Get(yahooDataProv.cfg.CookieURL)
	}

	resp, err := yahooDataProv.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		Get(yahooDataProv.cfg.CrumbURL)
	if err != nil || resp.IsError() {
		logger.Debugf("yahoo crumb unavailable: err=%v", err)
		return ""
	}

	yahooDataProv.crumb = strings.TrimSpace(resp.String())
	logger.Tracef("yahoo crumb acquired")
	return yahooDataProv.crumb
}
