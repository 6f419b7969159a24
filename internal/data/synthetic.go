package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/option-snapshot/internal/config"
)

// synthDataProvider implements Data Provider generating synthetic data.
//
// Output is a pure function of (seed, symbol, clock): the same inputs give
// the same quote, expirations and chains. Prices use a rough
// 0.4*S*iv*sqrt(T) time-value rule; they look plausible, nothing more.
type synthDataProvider struct {
	seed      int64
	now       func() time.Time
	secondary Provider
}

const (
	synthStrikeSteps = 8  // strikes on each side of spot
	synthExpiries    = 10 // weekly expirations generated
)

func NewSyntheticProvider(cfg config.SyntheticConfig, secondary Provider) *synthDataProvider {
	return &synthDataProvider{seed: cfg.Seed, now: time.Now, secondary: secondary}
}

// WithClock pins the provider's notion of "now".
func (synthDataProv *synthDataProvider) WithClock(now func() time.Time) *synthDataProvider {
	synthDataProv.now = now
	return synthDataProv
}

func (synthDataProv *synthDataProvider) Name() string { return "synthetic" }

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) rng(symbol string, salt string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(salt))
	return rand.New(rand.NewSource(synthDataProv.seed ^ int64(h.Sum64())))
}

// spot is a stable per-symbol price between 20 and 520.
func (synthDataProv *synthDataProvider) spot(symbol string) float64 {
	r := synthDataProv.rng(symbol, "spot")
	return math.Round((20+r.Float64()*500)*100) / 100
}

func (synthDataProv *synthDataProvider) GetQuote(_ context.Context, symbol string) (Quote, error) {
	return Quote{RegularMarketPrice: Num(synthDataProv.spot(symbol))}, nil
}

// GetDailyBars walks a random path on weekdays that ends at the quoted spot.
func (synthDataProv *synthDataProvider) GetDailyBars(_ context.Context, symbol string, fromDate, toDate time.Time) ([]Bar, error) {
	r := synthDataProv.rng(symbol, "bars")
	var days []time.Time
	for cur := fromDate.UTC().Truncate(24 * time.Hour); !cur.After(toDate); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			days = append(days, cur)
		}
	}

	out := make([]Bar, len(days))
	price := synthDataProv.spot(symbol)
	for i := len(days) - 1; i >= 0; i-- {
		delta := r.NormFloat64() * 0.01 * price
		closePx := price
		open := price - delta
		high := math.Max(open, closePx) + math.Abs(r.NormFloat64()*0.3)
		low := math.Min(open, closePx) - math.Abs(r.NormFloat64()*0.3)
		out[i] = Bar{Date: days[i], Open: open, High: high, Low: low, Close: closePx, Vol: float64(1000 + r.Intn(5000))}
		price = open
	}
	return out, nil
}

// GetExpirations lists the next weekly Friday expirations after now.
func (synthDataProv *synthDataProvider) GetExpirations(_ context.Context, _ string) ([]Expiration, error) {
	day := synthDataProv.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	for day.Weekday() != time.Friday {
		day = day.AddDate(0, 0, 1)
	}
	out := make([]Expiration, 0, synthExpiries)
	for i := 0; i < synthExpiries; i++ {
		out = append(out, ExpirationFromTime(day.AddDate(0, 0, 7*i)))
	}
	return out, nil
}

// GetOptionChain builds strikes around spot with a volatility smile.
// Roughly one record in ten has no volume reported.
func (synthDataProv *synthDataProvider) GetOptionChain(_ context.Context, symbol string, expiration Expiration) (*OptionChain, error) {
	expiry, err := expiration.UTC()
	if err != nil {
		return nil, err
	}
	r := synthDataProv.rng(symbol, string(expiration))

	spot := synthDataProv.spot(symbol)
	step := strikeStep(spot)
	atm := math.Round(spot/step) * step
	years := math.Max(expiry.Sub(synthDataProv.now()).Hours()/24/365, 1.0/365)
	baseIV := 0.18 + r.Float64()*0.25

	chain := &OptionChain{Expiration: expiration}
	for i := -synthStrikeSteps; i <= synthStrikeSteps; i++ {
		strike := atm + float64(i)*step
		if strike <= 0 {
			continue
		}
		moneyness := math.Log(strike / spot)
		iv := baseIV + 0.8*moneyness*moneyness - 0.05*moneyness
		timeValue := 0.4 * spot * iv * math.Sqrt(years) * math.Exp(-moneyness*moneyness/(2*iv*iv*years))

		callPx := math.Max(spot-strike, 0) + timeValue
		putPx := math.Max(strike-spot, 0) + timeValue
		chain.Calls = append(chain.Calls, synthRecord(r, strike, iv, callPx))
		chain.Puts = append(chain.Puts, synthRecord(r, strike, iv, putPx))
	}
	return chain, nil
}

func synthRecord(r *rand.Rand, strike, iv, price float64) RawOptionRecord {
	spread := math.Max(0.01, price*0.04)
	rec := RawOptionRecord{
		Strike:            Num(strike),
		ImpliedVolatility: Num(iv),
		OpenInterest:      Num(float64(r.Intn(20000))),
		Volume:            Num(float64(r.Intn(5000))),
		Bid:               Num(math.Max(price-spread/2, 0)),
		Ask:               Num(price + spread/2),
		LastPrice:         Num(price * (1 + (r.Float64()-0.5)*0.02)),
	}
	if r.Intn(10) == 0 {
		rec.Volume = Number{}
	}
	return rec
}

// strikeStep picks a listing increment that scales with the price.
func strikeStep(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 100:
		return 1
	case spot < 250:
		return 2.5
	default:
		return 5
	}
}
