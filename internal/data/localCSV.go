package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/option-snapshot/internal/logger"
)

// localFileDataProvider implements Data Provider from local CSV files.
//
// Layout, one directory per upper-case symbol:
//
//	<dir>/<SYMBOL>/quote.csv                 regularMarketPrice,currentPrice
//	<dir>/<SYMBOL>/bars.csv                  date,open,high,low,close,volume
//	<dir>/<SYMBOL>/expirations.csv           expiration
//	<dir>/<SYMBOL>/chain_<YYYY-MM-DD>.csv    type,strike,impliedVolatility,openInterest,volume,bid,ask,lastPrice
//
// Cells are read as text so that blanks and junk survive as missing values.
type localFileDataProvider struct {
	dir       string
	secondary Provider
}

type localQuoteRow struct {
	RegularMarketPrice string `csv:"regularMarketPrice"`
	CurrentPrice       string `csv:"currentPrice"`
}

type localBarRow struct {
	Date   string `csv:"date"`
	Open   string `csv:"open"`
	High   string `csv:"high"`
	Low    string `csv:"low"`
	Close  string `csv:"close"`
	Volume string `csv:"volume"`
}

type localExpirationRow struct {
	Expiration string `csv:"expiration"`
}

type localChainRow struct {
	Type              string `csv:"type"`
	Strike            string `csv:"strike"`
	ImpliedVolatility string `csv:"impliedVolatility"`
	OpenInterest      string `csv:"openInterest"`
	Volume            string `csv:"volume"`
	Bid               string `csv:"bid"`
	Ask               string `csv:"ask"`
	LastPrice         string `csv:"lastPrice"`
}

// NewLocalFileDataProvider convenience constructor.
func NewLocalFileDataProvider(dir string, secondary Provider) *localFileDataProvider {
	logger.Infof("initializing local file data provider dir=%s", dir)
	return &localFileDataProvider{dir: dir, secondary: secondary}
}

func (localFileDataProv *localFileDataProvider) Name() string { return "local" }

func (localFileDataProv *localFileDataProvider) Secondary() Provider {
	return localFileDataProv.secondary
}

func (localFileDataProv *localFileDataProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	q, err := localFileDataProv.quote(symbol)
	return delegate(localFileDataProv, "quote", q, err, func(s Provider) (Quote, error) {
		return s.GetQuote(ctx, symbol)
	})
}

func (localFileDataProv *localFileDataProvider) quote(symbol string) (Quote, error) {
	var rows []*localQuoteRow
	if err := localFileDataProv.read(symbol, "quote.csv", &rows); err != nil {
		return Quote{}, err
	}
	if len(rows) == 0 {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNoData)
	}
	return Quote{
		RegularMarketPrice: ParseNumber(rows[0].RegularMarketPrice),
		CurrentPrice:       ParseNumber(rows[0].CurrentPrice),
	}, nil
}

// GetDailyBars returns the bars dated within [fromDate, toDate].
// Rows with an unparsable date or close are skipped.
func (localFileDataProv *localFileDataProvider) GetDailyBars(ctx context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	bars, err := localFileDataProv.dailyBars(symbol, fromDate, toDate)
	return delegate(localFileDataProv, "daily bars", bars, err, func(s Provider) ([]Bar, error) {
		return s.GetDailyBars(ctx, symbol, fromDate, toDate)
	})
}

func (localFileDataProv *localFileDataProvider) dailyBars(symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	var rows []*localBarRow
	if err := localFileDataProv.read(symbol, "bars.csv", &rows); err != nil {
		return nil, err
	}

	out := make([]Bar, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(expirationLayout, strings.TrimSpace(row.Date))
		if err != nil {
			continue // skip malformed dates
		}
		closePx, ok := ParseNumber(row.Close).Float()
		if !ok {
			continue
		}
		if date.Before(fromDate.UTC().Truncate(24*time.Hour)) || date.After(toDate) {
			continue
		}
		out = append(out, Bar{
			Date:  date,
			Open:  ParseNumber(row.Open).Value,
			High:  ParseNumber(row.High).Value,
			Low:   ParseNumber(row.Low).Value,
			Close: closePx,
			Vol:   ParseNumber(row.Volume).Value,
		})
	}
	return out, nil
}

// GetExpirations returns the expirations in file order.
func (localFileDataProv *localFileDataProvider) GetExpirations(ctx context.Context, symbol string) ([]Expiration, error) {
	exps, err := localFileDataProv.expirations(symbol)
	return delegate(localFileDataProv, "expirations", exps, err, func(s Provider) ([]Expiration, error) {
		return s.GetExpirations(ctx, symbol)
	})
}

func (localFileDataProv *localFileDataProvider) expirations(symbol string) ([]Expiration, error) {
	var rows []*localExpirationRow
	if err := localFileDataProv.read(symbol, "expirations.csv", &rows); err != nil {
		return nil, err
	}
	out := make([]Expiration, 0, len(rows))
	for _, row := range rows {
		out = append(out, Expiration(strings.TrimSpace(row.Expiration)))
	}
	return out, nil
}

// GetOptionChain reads chain_<expiration>.csv. Rows whose type is neither
// call nor put are ignored.
func (localFileDataProv *localFileDataProvider) GetOptionChain(ctx context.Context, symbol string, expiration Expiration) (*OptionChain, error) {
	chain, err := localFileDataProv.optionChain(symbol, expiration)
	return delegate(localFileDataProv, "option chain", chain, err, func(s Provider) (*OptionChain, error) {
		return s.GetOptionChain(ctx, symbol, expiration)
	})
}

func (localFileDataProv *localFileDataProvider) optionChain(symbol string, expiration Expiration) (*OptionChain, error) {
	var rows []*localChainRow
	if err := localFileDataProv.read(symbol, "chain_"+string(expiration)+".csv", &rows); err != nil {
		return nil, err
	}

	chain := &OptionChain{Expiration: expiration}
	for _, row := range rows {
		rec := RawOptionRecord{
			Strike:            ParseNumber(row.Strike),
			ImpliedVolatility: ParseNumber(row.ImpliedVolatility),
			OpenInterest:      ParseNumber(row.OpenInterest),
			Volume:            ParseNumber(row.Volume),
			Bid:               ParseNumber(row.Bid),
			Ask:               ParseNumber(row.Ask),
			LastPrice:         ParseNumber(row.LastPrice),
		}
		switch strings.ToLower(strings.TrimSpace(row.Type)) {
		case "call", "c":
			chain.Calls = append(chain.Calls, rec)
		case "put", "p":
			chain.Puts = append(chain.Puts, rec)
		}
	}
	return chain, nil
}

func (localFileDataProv *localFileDataProvider) read(symbol, name string, out any) error {
	path := filepath.Join(localFileDataProv.dir, strings.ToUpper(symbol), name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("read csv %s: %w", path, err)
	}
	return nil
}
