package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/contactkeval/option-snapshot/internal/chain"
)

var (
	nearExpiry = time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)
	farExpiry  = time.Date(2025, time.January, 24, 0, 0, 0, 0, time.UTC)
)

func row(expiry time.Time, strike float64, side chain.Side, iv float64, volume int64, bid, ask, last float64) chain.Row {
	return chain.Row{
		ExpiryUTC: expiry.Format(chain.ExpiryLayout),
		Strike:    strike,
		Type:      side,
		IV:        iv,
		Volume:    volume,
		Bid:       bid,
		Ask:       ask,
		LastPrice: last,
		Expiry:    expiry,
	}
}

func spotOf(v float64) *float64 { return &v }

func TestComputeWorkedExample(t *testing.T) {
	rows := []chain.Row{
		row(nearExpiry, 100, chain.Call, 0.20, 100, 2.00, 2.20, 0),
		row(nearExpiry, 100, chain.Put, 0.22, 80, 1.80, 2.00, 0),
	}

	got := Compute(spotOf(100), rows)

	want := Result{
		ATMIV:        &ATMIV{Percent: 21.0, Decimal: 0.21, Strike: 100},
		PutCallRatio: &PutCallRatio{Ratio: 0.8, Window: WindowExpiry},
		ImpliedMove:  &ImpliedMove{Abs: 4.00, Pct: 4.0, Expiry: "2025-01-17T00:00:00Z"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeInsufficientInputs(t *testing.T) {
	rows := []chain.Row{row(nearExpiry, 100, chain.Call, 0.2, 1, 1, 1, 1)}

	if got := Compute(nil, rows); got != (Result{}) {
		t.Fatalf("nil spot: expected empty result, got %+v", got)
	}
	if got := Compute(spotOf(100), nil); got != (Result{}) {
		t.Fatalf("no rows: expected empty result, got %+v", got)
	}
	if got := Compute(spotOf(100), []chain.Row{}); got != (Result{}) {
		t.Fatalf("empty rows: expected empty result, got %+v", got)
	}
}

func TestATMStrikeSelection(t *testing.T) {
	tests := []struct {
		name     string
		strikes  []float64
		spot     float64
		expected float64
	}{
		{"closest below", []float64{95, 100, 105}, 101, 100},
		{"closest above", []float64{95, 100, 105}, 103, 105},
		{"exact match", []float64{105, 95, 100}, 100, 100},
		{"equidistant tie", []float64{105, 95}, 100, 105},
		{"equidistant tie reversed", []float64{95, 105}, 100, 95},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var rows []chain.Row
			for _, k := range test.strikes {
				rows = append(rows, row(nearExpiry, k, chain.Call, 0.25, 1, 1, 1.1, 1))
			}
			got := Compute(spotOf(test.spot), rows)
			if got.ATMIV == nil || got.ATMIV.Strike != test.expected {
				t.Fatalf("expected ATM strike %v, got %+v", test.expected, got.ATMIV)
			}
		})
	}
}

func TestATMIVSingleLeg(t *testing.T) {
	rows := []chain.Row{
		row(nearExpiry, 100, chain.Put, 0.31234, 10, 1, 1.2, 0),
		row(nearExpiry, 110, chain.Call, 0.2, 10, 1, 1.2, 0),
	}

	got := Compute(spotOf(101), rows)

	if diff := cmp.Diff(&ATMIV{Percent: 31.2, Decimal: 0.3123, Strike: 100}, got.ATMIV); diff != "" {
		t.Fatalf("atm iv mismatch (-want +got):\n%s", diff)
	}
	if got.ImpliedMove != nil {
		t.Fatalf("implied move needs both legs, got %+v", got.ImpliedMove)
	}
}

func TestNearestExpiryPresent(t *testing.T) {
	// The far expiry is listed first; only the near one is used.
	rows := []chain.Row{
		row(farExpiry, 100, chain.Call, 0.50, 1000, 5, 6, 0),
		row(farExpiry, 100, chain.Put, 0.50, 10, 5, 6, 0),
		row(nearExpiry, 101, chain.Call, 0.20, 50, 1, 1.2, 0),
		row(nearExpiry, 101, chain.Put, 0.30, 100, 0.9, 1.1, 0),
	}

	got := Compute(spotOf(100), rows)

	want := Result{
		ATMIV:        &ATMIV{Percent: 25.0, Decimal: 0.25, Strike: 101},
		PutCallRatio: &PutCallRatio{Ratio: 2, Window: WindowExpiry},
		ImpliedMove:  &ImpliedMove{Abs: 2.1, Pct: 2.1, Expiry: "2025-01-17T00:00:00Z"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestPutCallRatioWithoutCallVolume(t *testing.T) {
	rows := []chain.Row{
		row(nearExpiry, 100, chain.Call, 0.2, 0, 1, 1.2, 0),
		row(nearExpiry, 100, chain.Put, 0.2, 500, 1, 1.2, 0),
	}

	got := Compute(spotOf(100), rows)
	if got.PutCallRatio != nil {
		t.Fatalf("expected nil ratio with zero call volume, got %+v", got.PutCallRatio)
	}
	if got.ATMIV == nil {
		t.Fatalf("atm iv must not depend on volume")
	}
}

func TestPutCallRatioRounding(t *testing.T) {
	rows := []chain.Row{
		row(nearExpiry, 100, chain.Call, 0.2, 300, 1, 1.2, 0),
		row(nearExpiry, 105, chain.Call, 0.2, 0, 1, 1.2, 0),
		row(nearExpiry, 100, chain.Put, 0.2, 100, 1, 1.2, 0),
	}

	got := Compute(spotOf(100), rows)
	if diff := cmp.Diff(&PutCallRatio{Ratio: 0.33, Window: WindowExpiry}, got.PutCallRatio); diff != "" {
		t.Fatalf("ratio mismatch (-want +got):\n%s", diff)
	}
}

func TestImpliedMoveMidPrice(t *testing.T) {
	tests := []struct {
		name     string
		call     chain.Row
		put      chain.Row
		expected *ImpliedMove
	}{
		{
			name:     "last price when a side is unquoted",
			call:     row(nearExpiry, 50, chain.Call, 0.3, 1, 0, 1.5, 1.4),
			put:      row(nearExpiry, 50, chain.Put, 0.3, 1, 1.0, 1.2, 0),
			expected: &ImpliedMove{Abs: 2.5, Pct: 5.0, Expiry: "2025-01-17T00:00:00Z"},
		},
		{
			name: "no usable price",
			call: row(nearExpiry, 50, chain.Call, 0.3, 1, 0, 0, 0),
			put:  row(nearExpiry, 50, chain.Put, 0.3, 1, 1.0, 1.2, 0),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Compute(spotOf(50), []chain.Row{test.call, test.put})
			if diff := cmp.Diff(test.expected, got.ImpliedMove); diff != "" {
				t.Fatalf("implied move mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeParsesExpiryText(t *testing.T) {
	r := row(nearExpiry, 100, chain.Call, 0.2, 1, 1, 1.2, 0)
	r.Expiry = time.Time{}

	got := Compute(spotOf(100), []chain.Row{r})
	if got.ATMIV == nil || got.ATMIV.Strike != 100 {
		t.Fatalf("expected ATM strike 100, got %+v", got.ATMIV)
	}
}

func TestPutCallRatioLargeVolumes(t *testing.T) {
	rows := []chain.Row{
		row(nearExpiry, 100, chain.Call, 0.2, math.MaxInt64, 1, 1.2, 0),
		row(nearExpiry, 105, chain.Call, 0.2, math.MaxInt64, 1, 1.2, 0),
		row(nearExpiry, 100, chain.Put, 0.2, math.MaxInt64, 1, 1.2, 0),
	}

	got := Compute(spotOf(100), rows)
	if diff := cmp.Diff(&PutCallRatio{Ratio: 0.5, Window: WindowExpiry}, got.PutCallRatio); diff != "" {
		t.Fatalf("ratio mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeOverflowingValuesAreNull(t *testing.T) {
	rows := []chain.Row{
		row(nearExpiry, 100, chain.Call, 1e307, 10, 0, 0, 1e308),
		row(nearExpiry, 100, chain.Put, 1e307, 10, 0, 0, 1e308),
	}

	got := Compute(spotOf(100), rows)
	if got.ATMIV != nil {
		t.Fatalf("expected nil atm iv, got %+v", got.ATMIV)
	}
	if got.ImpliedMove != nil {
		t.Fatalf("expected nil implied move, got %+v", got.ImpliedMove)
	}
	if got.PutCallRatio == nil || got.PutCallRatio.Ratio != 1 {
		t.Fatalf("ratio must be unaffected, got %+v", got.PutCallRatio)
	}
}
