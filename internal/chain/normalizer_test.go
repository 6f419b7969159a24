package chain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/contactkeval/option-snapshot/internal/data"
	"github.com/contactkeval/option-snapshot/internal/testutil"
)

func testExpiration(t *testing.T, ttm float64) SelectedExpiration {
	return SelectedExpiration{Raw: "2025-01-17", ExpiryUTC: mustExpiry(t, "2025-01-17"), TTMDays: ttm}
}

func TestNormalizeAccepts(t *testing.T) {
	exp := testExpiration(t, 3)

	tests := []struct {
		name     string
		raw      data.RawOptionRecord
		side     Side
		expected Row
	}{
		{
			name:     "all fields",
			raw:      testutil.Record(100.004, 0.23456, 1200, 350, 2.004, 2.2, 2.1),
			side:     Call,
			expected: wantRow(t, "2025-01-17", 3, 100, Call, 0.2346, 1200, 350, 2, 2.2, 2.1),
		},
		{
			name:     "missing open interest and volume",
			raw:      testutil.Record(95, 0.3, nan, nan, 1, 1.2, 1.1),
			side:     Put,
			expected: wantRow(t, "2025-01-17", 3, 95, Put, 0.3, 0, 0, 1, 1.2, 1.1),
		},
		{
			name:     "non-positive and missing prices",
			raw:      testutil.Record(105, 0.25, 10, -3, -1, 0, nan),
			side:     Call,
			expected: wantRow(t, "2025-01-17", 3, 105, Call, 0.25, 10, 0, 0, 0, 0),
		},
		{
			name:     "fractional counts truncate",
			raw:      testutil.Record(110, 0.4, 12.9, 7.5, 0.5, 0.6, 0.55),
			side:     Put,
			expected: wantRow(t, "2025-01-17", 3, 110, Put, 0.4, 12, 7, 0.5, 0.6, 0.55),
		},
		{
			name: "non-numeric volume",
			raw: data.RawOptionRecord{
				Strike:            data.ParseNumber("120"),
				ImpliedVolatility: data.ParseNumber("0.5"),
				OpenInterest:      data.ParseNumber("abc"),
				Volume:            data.ParseNumber("n/a"),
				Bid:               data.ParseNumber("1,000.5"),
			},
			side:     Call,
			expected: wantRow(t, "2025-01-17", 3, 120, Call, 0.5, 0, 0, 1000.5, 0, 0),
		},
		{
			name:     "counts beyond int64 degrade to zero",
			raw:      testutil.Record(100, 0.2, 1e19, 9.3e18, 1, 1.1, 1.05),
			side:     Call,
			expected: wantRow(t, "2025-01-17", 3, 100, Call, 0.2, 0, 0, 1, 1.1, 1.05),
		},
		{
			name:     "prices too large to round degrade to zero",
			raw:      testutil.Record(100, 0.2, 5, 5, 1e307, 1e308, 2),
			side:     Put,
			expected: wantRow(t, "2025-01-17", 3, 100, Put, 0.2, 5, 5, 0, 0, 2),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Normalize(test.raw, test.side, exp, 30)
			if err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatalf("row mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name     string
		raw      data.RawOptionRecord
		ttm      float64
		expected error
	}{
		{"missing iv", testutil.Record(100, nan, 1, 1, 1, 1, 1), 3, ErrInvalidIV},
		{"zero iv", testutil.Record(100, 0, 1, 1, 1, 1, 1), 3, ErrInvalidIV},
		{"negative iv", testutil.Record(100, -0.2, 1, 1, 1, 1, 1), 3, ErrInvalidIV},
		{"iv rounds to zero", testutil.Record(100, 0.00004, 1, 1, 1, 1, 1), 3, ErrInvalidIV},
		{"iv too large to round", testutil.Record(100, 1e308, 1, 1, 1, 1, 1), 3, ErrInvalidIV},
		{"negative open interest", testutil.Record(100, 0.2, -1, 1, 1, 1, 1), 3, ErrNegativeOpenInterest},
		{"missing strike", testutil.Record(nan, 0.2, 1, 1, 1, 1, 1), 3, ErrInvalidStrike},
		{"zero strike", testutil.Record(0, 0.2, 1, 1, 1, 1, 1), 3, ErrInvalidStrike},
		{"negative strike", testutil.Record(-5, 0.2, 1, 1, 1, 1, 1), 3, ErrInvalidStrike},
		{"strike rounds to zero", testutil.Record(0.004, 0.2, 1, 1, 1, 1, 1), 3, ErrInvalidStrike},
		{"strike too large to round", testutil.Record(1e307, 0.2, 1, 1, 1, 1, 1), 3, ErrInvalidStrike},
		{"expired", testutil.Record(100, 0.2, 1, 1, 1, 1, 1), 0, ErrOutOfWindow},
		{"past expiry", testutil.Record(100, 0.2, 1, 1, 1, 1, 1), -1, ErrOutOfWindow},
		{"beyond window", testutil.Record(100, 0.2, 1, 1, 1, 1, 1), 30.5, ErrOutOfWindow},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Normalize(test.raw, Put, testExpiration(t, test.ttm), 30)
			if !errors.Is(err, test.expected) {
				t.Fatalf("expected %v, got %v", test.expected, err)
			}

			var rejectErr *RejectError
			if !errors.As(err, &rejectErr) {
				t.Fatalf("expected *RejectError, got %T", err)
			}
			if rejectErr.Side != Put || rejectErr.Expiry != "2025-01-17" {
				t.Fatalf("reject error lost context: %+v", rejectErr)
			}
		})
	}
}

func TestNormalizeWindowEdge(t *testing.T) {
	raw := testutil.Record(100, 0.2, 1, 1, 1, 1, 1)
	row, err := Normalize(raw, Call, testExpiration(t, 30), 30)
	if err != nil {
		t.Fatalf("ttm equal to max days must be accepted: %v", err)
	}
	if row.TTMDays != 30 {
		t.Fatalf("expected ttm 30, got %f", row.TTMDays)
	}
}
