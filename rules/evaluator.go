package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// EvaluationAmbiguous annotates a UNIQUE table that matched more than one rule
const EvaluationAmbiguous = "EvaluationAmbiguous"

// Evaluate tests every rule of the table against the resolved inputs and applies the hit policy.
// Inputs are keyed by InputClause.Name(); a missing key makes any non-wildcard condition fail.
func Evaluate(t *DecisionTable, inputs map[string]Value) *EvaluationResult {
	res := &EvaluationResult{
		TableID:   t.ID,
		TableName: t.Name,
		HitPolicy: t.HitPolicy,
		Outputs:   make(map[string]string),
	}

	var matched []Rule
	for _, r := range t.Rules {
		if ok, why := ruleMatches(t, r, inputs); ok {
			matched = append(matched, r)
			res.Explanation = append(res.Explanation, fmt.Sprintf("rule %s matched: %s", ruleLabel(r), why))
		}
	}

	if len(matched) == 0 {
		res.Explanation = append(res.Explanation, fmt.Sprintf("no rule of %q matched the resolved inputs %s", t.Name, formatInputs(t, inputs)))
		return res
	}

	switch {
	case t.HitPolicy.SingleHit():
		if t.HitPolicy == HitPolicyUnique && len(matched) > 1 {
			res.Ambiguous = true
			res.Explanation = append(res.Explanation, fmt.Sprintf("%s: UNIQUE table %q matched %d rules, using rule %s",
				EvaluationAmbiguous, t.Name, len(matched), ruleLabel(matched[0])))
		}
		matched = matched[:1]
	case t.HitPolicy != HitPolicyRuleOrder && t.HitPolicy != HitPolicyCollect && t.HitPolicy != HitPolicyAny:
		res.Explanation = append(res.Explanation, fmt.Sprintf("%s ordering is evaluated in rule order", t.HitPolicy))
	}

	res.MatchedRules = matched
	mergeOutputs(t, matched, res.Outputs)
	if t.Aggregation != AggregationNone {
		aggregate(t, matched, res)
	}

	return res
}

func ruleMatches(t *DecisionTable, r Rule, inputs map[string]Value) (bool, string) {
	var why []string
	for i, c := range r.Conditions {
		name := t.Inputs[i].Name()
		in, present := inputs[name]
		if !c.Matches(in, present) {
			return false, ""
		}
		if c.Kind != ConditionAny {
			why = append(why, fmt.Sprintf("%s=%s satisfies %s", name, in.Text, c))
		}
	}
	if len(why) == 0 {
		return true, "all conditions are wildcards"
	}
	return true, strings.Join(why, " AND ")
}

// mergeOutputs copies outputs of kept rules in order. Keys set by an earlier rule are never overwritten.
func mergeOutputs(t *DecisionTable, kept []Rule, into map[string]string) {
	for _, r := range kept {
		for i, out := range t.Outputs {
			if _, set := into[out.Key()]; set {
				continue
			}
			into[out.Key()] = r.Outputs[i]
		}
	}
}

func aggregate(t *DecisionTable, kept []Rule, res *EvaluationResult) {
	for i, out := range t.Outputs {
		key := out.Key()
		if t.Aggregation == AggregationCount {
			res.Outputs[key] = strconv.Itoa(len(kept))
			continue
		}

		var acc float64
		n := 0
		for _, r := range kept {
			f, ok := parseNumber(r.Outputs[i])
			if !ok {
				continue
			}
			switch {
			case n == 0:
				acc = f
			case t.Aggregation == AggregationSum:
				acc += f
			case t.Aggregation == AggregationMin && f < acc:
				acc = f
			case t.Aggregation == AggregationMax && f > acc:
				acc = f
			}
			n++
		}
		if n == 0 {
			delete(res.Outputs, key)
			res.Explanation = append(res.Explanation, fmt.Sprintf("%s of %s omitted: no numeric outputs", t.Aggregation, key))
			continue
		}
		res.Outputs[key] = strconv.FormatFloat(acc, 'f', -1, 64)
	}
}

func ruleLabel(r Rule) string {
	if r.ID != "" {
		return fmt.Sprintf("#%d (%s)", r.Index+1, r.ID)
	}
	return fmt.Sprintf("#%d", r.Index+1)
}

func formatInputs(t *DecisionTable, inputs map[string]Value) string {
	parts := make([]string, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		v, ok := inputs[in.Name()]
		if !ok {
			parts = append(parts, in.Name()+"=<missing>")
			continue
		}
		parts = append(parts, in.Name()+"="+v.Text)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
