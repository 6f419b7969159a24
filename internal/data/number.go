package data

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is an optional numeric field from a provider payload. The zero
// value is a missing number. Non-numeric input (objects, text, NaN, Inf)
// decodes to an invalid Number instead of failing the whole payload.
type Number struct {
	Value float64
	Valid bool
}

// Num wraps a float; NaN and infinities are invalid.
func Num(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// ParseNumber parses a decimal string. Blank, "NaN" and unparsable text give
// an invalid Number. Thousands separators are tolerated.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return Num(v)
}

// Float returns the value and whether it is usable.
func (n Number) Float() (float64, bool) {
	return n.Value, n.Valid
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*n = ParseNumber(s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*n = Num(v)
	}
	return nil
}
