package rules

import (
	"fmt"
	"strings"
)

// ConditionKind tags the variant held by a Condition
type ConditionKind int

const (
	ConditionAny ConditionKind = iota
	ConditionEquals
	ConditionRange
	ConditionEnumeration
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionAny:
		return "any"
	case ConditionEquals:
		return "equals"
	case ConditionRange:
		return "range"
	case ConditionEnumeration:
		return "enumeration"
	}
	return fmt.Sprintf("ConditionKind(%d)", int(k))
}

// Operator is the comparison of a Range condition
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// Condition is one input entry of a rule, classified once when the table is parsed.
// Value is used by Equals and Range, Values by Enumeration.
type Condition struct {
	Kind   ConditionKind
	Op     Operator
	Value  Value
	Values []Value
}

// Any returns the wildcard condition
func Any() Condition {
	return Condition{Kind: ConditionAny}
}

// Equals returns an exact-match condition
func Equals(v Value) Condition {
	return Condition{Kind: ConditionEquals, Value: v}
}

// Range returns a comparison condition
func Range(op Operator, bound Value) Condition {
	return Condition{Kind: ConditionRange, Op: op, Value: bound}
}

// Enumeration returns a membership condition
func Enumeration(values ...Value) Condition {
	return Condition{Kind: ConditionEnumeration, Values: values}
}

// ParseCondition classifies input-entry text.
// Precedence: empty or "-" is Any, a leading comparison operator is Range,
// a comma outside double quotes is Enumeration, anything else is Equals.
func ParseCondition(text string) (Condition, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return Any(), nil
	}

	for _, op := range []Operator{OpLessEqual, OpGreaterEqual, OpLess, OpGreater} {
		if rest, ok := strings.CutPrefix(text, string(op)); ok {
			rest = strings.TrimSpace(rest)
			if rest == "" {
				return Condition{}, fmt.Errorf("range %q has no bound", text)
			}
			return Range(op, ParseValue(rest)), nil
		}
	}

	if parts := splitUnquoted(text, ','); len(parts) > 1 {
		values := make([]Value, 0, len(parts))
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			values = append(values, ParseValue(p))
		}
		if len(values) == 0 {
			return Condition{}, fmt.Errorf("enumeration %q has no values", text)
		}
		return Enumeration(values...), nil
	}

	return Equals(ParseValue(text)), nil
}

// Matches tests the condition against a resolved input.
// A missing input only satisfies Any.
func (c Condition) Matches(in Value, present bool) bool {
	switch c.Kind {
	case ConditionAny:
		return true
	case ConditionEquals:
		return present && c.Value.Equal(in)
	case ConditionEnumeration:
		if !present {
			return false
		}
		for _, v := range c.Values {
			if v.Equal(in) {
				return true
			}
		}
		return false
	case ConditionRange:
		if !present {
			return false
		}
		cmp, ok := in.compare(c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpLess:
			return cmp < 0
		case OpLessEqual:
			return cmp <= 0
		case OpGreater:
			return cmp > 0
		case OpGreaterEqual:
			return cmp >= 0
		}
	}
	return false
}

// String renders the condition in input-entry syntax
func (c Condition) String() string {
	switch c.Kind {
	case ConditionEquals:
		return formatValue(c.Value)
	case ConditionRange:
		return string(c.Op) + " " + formatValue(c.Value)
	case ConditionEnumeration:
		parts := make([]string, len(c.Values))
		for i, v := range c.Values {
			parts[i] = formatValue(v)
		}
		if len(parts) == 1 {
			return parts[0] + ","
		}
		return strings.Join(parts, ", ")
	}
	return "-"
}

// splitUnquoted splits s on sep, ignoring separators inside double quotes
func splitUnquoted(s string, sep rune) []string {
	var (
		parts   []string
		b       strings.Builder
		inQuote bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == sep && !inQuote:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(parts, b.String())
}
