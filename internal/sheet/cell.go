// Package sheet turns raw spreadsheet values into typed Go values.
//
// Cells arrive as whatever the upstream API produced: strings (formatted
// values), float64 (unformatted values or JSON numbers), bool, or nil for
// missing trailing cells. Every function here is total over that domain and
// never returns an error; malformed input maps to the documented zero value.
package sheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IsBlank reports whether a cell holds nothing usable.
func IsBlank(c any) bool {
	switch v := c.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// ToString returns the trimmed textual form of a cell, or "" for nil.
func ToString(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// ToUpper returns the trimmed, upper-cased textual form of a cell.
func ToUpper(c any) string {
	return strings.ToUpper(ToString(c))
}

// ToNumber coerces a cell to float64. Thousands separators and a single
// trailing percent sign are stripped before parsing. Blank, unparseable and
// non-finite input yields 0.
func ToNumber(c any) float64 {
	n, _ := parseNumber(c)
	return n
}

// ToOptionalNumber is ToNumber for fields where "unknown" must stay distinct
// from zero. It returns nil when the cell is blank or unparseable.
func ToOptionalNumber(c any) *float64 {
	n, ok := parseNumber(c)
	if !ok {
		return nil
	}
	return &n
}

// ToBool reports whether a cell carries a set signal flag: "Y", "TRUE", "1"
// (case-insensitive, trimmed), the number 1, or boolean true.
func ToBool(c any) bool {
	switch v := c.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	}
	switch ToUpper(c) {
	case "Y", "TRUE", "1":
		return true
	}
	return false
}

func parseNumber(c any) (float64, bool) {
	switch v := c.(type) {
	case nil, bool:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return parseNumericString(v)
	default:
		return 0, false
	}
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(s, "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	// Float64 materialises 10^exponent, so magnitudes float64 cannot hold
	// are settled before converting.
	if d.IsZero() {
		return 0, true
	}
	mag := int64(d.Exponent()) + int64(d.NumDigits())
	switch {
	case mag > maxMagnitude:
		return 0, false
	case mag < minMagnitude:
		return 0, true
	}
	f, _ := d.Float64()
	return finite(f)
}

// Decimal magnitudes (exponent plus coefficient digits) outside this range
// overflow float64 or underflow to zero.
const (
	maxMagnitude = 310
	minMagnitude = -330
)

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
