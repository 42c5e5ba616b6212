package rules

import (
	"math"
	"strconv"
	"strings"
)

// Value is a literal input or condition operand.
// Num is set when Text parses as a number.
type Value struct {
	Text    string
	Num     float64
	Numeric bool
}

// ParseValue builds a Value from literal text, stripping surrounding double quotes.
// Quoted text is never treated as numeric.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if unq, ok := unquote(s); ok {
		return Value{Text: unq}
	}
	if f, ok := parseNumber(s); ok {
		return Value{Text: s, Num: f, Numeric: true}
	}
	return Value{Text: s}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ValueOf converts a Go value produced by JSON decoding or CEL evaluation
func ValueOf(v any) (Value, bool) {
	switch x := v.(type) {
	case nil:
		return Value{}, false
	case Value:
		return x, true
	case string:
		return ParseValue(x), true
	case bool:
		return Value{Text: strconv.FormatBool(x)}, true
	case int:
		return Value{Text: strconv.Itoa(x), Num: float64(x), Numeric: true}, true
	case int32:
		return Value{Text: strconv.FormatInt(int64(x), 10), Num: float64(x), Numeric: true}, true
	case int64:
		return Value{Text: strconv.FormatInt(x, 10), Num: float64(x), Numeric: true}, true
	case uint64:
		return Value{Text: strconv.FormatUint(x, 10), Num: float64(x), Numeric: true}, true
	case float32:
		return Value{Text: strconv.FormatFloat(float64(x), 'f', -1, 32), Num: float64(x), Numeric: true}, true
	case float64:
		return Value{Text: strconv.FormatFloat(x, 'f', -1, 64), Num: x, Numeric: true}, true
	}
	return Value{}, false
}

func (v Value) String() string {
	return v.Text
}

// Equal compares numerically when both sides are numeric, else case-insensitively as text
func (v Value) Equal(o Value) bool {
	if v.Numeric && o.Numeric {
		return v.Num == o.Num
	}
	return strings.EqualFold(v.Text, o.Text)
}

// compare returns -1, 0 or 1. ok is false when the operands are not comparable.
func (v Value) compare(o Value) (int, bool) {
	switch {
	case v.Numeric && o.Numeric:
		switch {
		case v.Num < o.Num:
			return -1, true
		case v.Num > o.Num:
			return 1, true
		}
		return 0, true
	case !v.Numeric && !o.Numeric:
		return strings.Compare(strings.ToLower(v.Text), strings.ToLower(o.Text)), true
	}
	return 0, false
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1], true
	}
	return s, false
}

// formatValue renders v so that ParseValue reads back an equal Value
func formatValue(v Value) string {
	if v.Numeric {
		return v.Text
	}
	return quoteLiteral(v.Text)
}

// quoteLiteral renders text that must come back as non-numeric text
func quoteLiteral(s string) string {
	if s == "true" || s == "false" {
		return s
	}
	return `"` + s + `"`
}
