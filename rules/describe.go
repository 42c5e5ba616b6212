package rules

import (
	"fmt"
	"strings"
)

// Describe renders a human-readable summary of a table: its inputs and up to maxRules rules
// in "condition AND condition → output" form. Wildcard conditions are omitted.
func Describe(t *DecisionTable, maxRules int) string {
	var b strings.Builder

	name := t.Name
	if t.ModelName != "" && t.ModelName != t.Name {
		name = t.ModelName + " / " + t.Name
	}
	fmt.Fprintf(&b, "%s (%s)\n", name, t.HitPolicy)

	inputs := make([]string, len(t.Inputs))
	for i, in := range t.Inputs {
		inputs[i] = in.Name()
	}
	fmt.Fprintf(&b, "- inputs: %s\n", strings.Join(inputs, ", "))

	outputs := make([]string, len(t.Outputs))
	for i, out := range t.Outputs {
		outputs[i] = out.Key()
	}
	fmt.Fprintf(&b, "- outputs: %s\n", strings.Join(outputs, ", "))

	for i, r := range t.Rules {
		if maxRules > 0 && i >= maxRules {
			fmt.Fprintf(&b, "  … %d more rules\n", len(t.Rules)-maxRules)
			break
		}
		var conds []string
		for j, c := range r.Conditions {
			if c.Kind == ConditionAny {
				continue
			}
			conds = append(conds, fmt.Sprintf("%s %s", t.Inputs[j].Name(), describeCondition(c)))
		}
		if len(conds) == 0 {
			conds = append(conds, "always")
		}
		results := make([]string, len(r.Outputs))
		for j, o := range r.Outputs {
			results[j] = fmt.Sprintf("%s=%s", t.Outputs[j].Key(), o)
		}
		fmt.Fprintf(&b, "  • %s → %s\n", strings.Join(conds, " AND "), strings.Join(results, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

func describeCondition(c Condition) string {
	switch c.Kind {
	case ConditionEquals:
		return "= " + c.Value.Text
	case ConditionRange:
		return string(c.Op) + " " + c.Value.Text
	case ConditionEnumeration:
		vals := make([]string, len(c.Values))
		for i, v := range c.Values {
			vals[i] = v.Text
		}
		return "in (" + strings.Join(vals, ", ") + ")"
	}
	return "any"
}
