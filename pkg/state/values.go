package state

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseFloat reads the leading number of a variable value the lenient way
// story data expects: "12abc" is 12, numbers pass through, anything else
// (bools, nil, "abc") is not a number.
func ParseFloat(v any) (float64, bool) {
	switch t := NormalizeValue(v).(type) {
	case float64:
		return t, !math.IsNaN(t)
	case string:
		s := strings.TrimSpace(t)
		switch {
		case strings.HasPrefix(s, "Infinity"), strings.HasPrefix(s, "+Infinity"):
			return math.Inf(1), true
		case strings.HasPrefix(s, "-Infinity"):
			return math.Inf(-1), true
		}
		m := leadingNumber.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FloatOr returns ParseFloat(v), or fallback when v is not numeric.
func FloatOr(v any, fallback float64) float64 {
	if f, ok := ParseFloat(v); ok {
		return f
	}
	return fallback
}

// ToNumber converts a value for loose comparison: bools become 0/1, the
// empty string 0, numeric strings their value. ok is false for values with
// no numeric reading.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return ParseFloat(v)
	}
}

// NormalizeValue folds Go integer types into float64 so values decoded from
// YAML, JSON and Go code compare alike.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case float32:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
