package rules

import (
	"strings"
	"testing"
)

func TestEvaluateUnique(t *testing.T) {
	risk := mustParse(t, loanRiskDMN)[0]

	testCases := []struct {
		name   string
		inputs map[string]Value
		rule   string
		risk   string
	}{
		{"low", map[string]Value{"creditScore": num(720, "720"), "income": num(50000, "50000")}, "lowRisk", "low"},
		{"medium", map[string]Value{"creditScore": num(700, "700"), "income": num(39999, "39999")}, "mediumRisk", "medium"},
		{"high ignores income", map[string]Value{"creditScore": num(600, "600")}, "highRisk", "high"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Evaluate(risk, tc.inputs)
			if !ev.Matched() {
				t.Fatalf("Evaluate() matched nothing: %v", ev.Explanation)
			}
			if len(ev.MatchedRules) != 1 || ev.MatchedRules[0].ID != tc.rule {
				t.Errorf("matched %v, want [%s]", RuleLabels(ev.MatchedRules), tc.rule)
			}
			if ev.Outputs["risk"] != tc.risk {
				t.Errorf("risk = %q, want %q", ev.Outputs["risk"], tc.risk)
			}
			if ev.Ambiguous {
				t.Error("single match should not be ambiguous")
			}
		})
	}
}

func TestEvaluateMissingInput(t *testing.T) {
	risk := mustParse(t, loanRiskDMN)[0]

	// income is required by the only rules that accept a score of 720
	ev := Evaluate(risk, map[string]Value{"creditScore": num(720, "720")})
	if ev.Matched() {
		t.Fatalf("expected no match, got %v", RuleLabels(ev.MatchedRules))
	}
	if len(ev.Outputs) != 0 {
		t.Errorf("expected no outputs, got %v", ev.Outputs)
	}
	if len(ev.Explanation) == 0 || !strings.Contains(ev.Explanation[0], "income=<missing>") {
		t.Errorf("explanation should name the missing input: %v", ev.Explanation)
	}
}

func TestEvaluateUniqueAmbiguous(t *testing.T) {
	discount := newTable(t, "Discount", HitPolicyUnique,
		[]string{"customerType"}, []string{"discount"},
		[]string{`"gold", "silver"`, "10"},
		[]string{`"gold"`, "15"},
	)

	ev := Evaluate(discount, map[string]Value{"customerType": str("gold")})
	if !ev.Ambiguous {
		t.Fatal("two matching rules under UNIQUE should be ambiguous")
	}
	if len(ev.MatchedRules) != 1 || ev.MatchedRules[0].Index != 0 {
		t.Errorf("ambiguous UNIQUE should keep the first rule, got %v", RuleLabels(ev.MatchedRules))
	}
	if ev.Outputs["discount"] != "10" {
		t.Errorf("discount = %q, want 10", ev.Outputs["discount"])
	}

	found := false
	for _, line := range ev.Explanation {
		if strings.HasPrefix(line, EvaluationAmbiguous) {
			found = true
		}
	}
	if !found {
		t.Errorf("explanation should carry %s: %v", EvaluationAmbiguous, ev.Explanation)
	}
}

func TestEvaluateFirst(t *testing.T) {
	shipping := mustParse(t, loanRiskDMN)[1]

	testCases := []struct {
		region string
		method string
		days   string
		rule   int
	}{
		{"EU", "standard", "5", 0},
		{"us", "express", "2", 1},
		{"JP", "economy", "10", 2},
	}

	for _, tc := range testCases {
		t.Run(tc.region, func(t *testing.T) {
			ev := Evaluate(shipping, map[string]Value{"region": str(tc.region)})
			if len(ev.MatchedRules) != 1 || ev.MatchedRules[0].Index != tc.rule {
				t.Fatalf("matched %v, want #%d", RuleLabels(ev.MatchedRules), tc.rule+1)
			}
			if ev.Outputs["method"] != tc.method || ev.Outputs["days"] != tc.days {
				t.Errorf("outputs = %v, want method=%s days=%s", ev.Outputs, tc.method, tc.days)
			}
			if ev.Ambiguous {
				t.Error("FIRST is never ambiguous")
			}
		})
	}
}

func TestEvaluateMultiHitMerge(t *testing.T) {
	build := func(hp HitPolicy) *DecisionTable {
		return newTable(t, "Checks", hp,
			[]string{"age"}, []string{"check", "level"},
			[]string{">= 18", "identity", "1"},
			[]string{">= 65", "pension", "2"},
			[]string{"-", "baseline", "0"},
		)
	}

	for _, hp := range []HitPolicy{HitPolicyRuleOrder, HitPolicyCollect, HitPolicyPriority, HitPolicyOutputOrder, HitPolicyAny} {
		t.Run(string(hp), func(t *testing.T) {
			ev := Evaluate(build(hp), map[string]Value{"age": num(70, "70")})
			if len(ev.MatchedRules) != 3 {
				t.Fatalf("matched %v, want all three rules", RuleLabels(ev.MatchedRules))
			}
			for i, r := range ev.MatchedRules {
				if r.Index != i {
					t.Errorf("matched rules out of order: %v", RuleLabels(ev.MatchedRules))
				}
			}
			// earlier rules win each output key
			if ev.Outputs["check"] != "identity" || ev.Outputs["level"] != "1" {
				t.Errorf("outputs = %v, want first-match-wins merge", ev.Outputs)
			}
		})
	}
}

func TestEvaluateCollectAggregation(t *testing.T) {
	testCases := []struct {
		agg  Aggregation
		want string
	}{
		{AggregationSum, "350"},
		{AggregationMin, "50"},
		{AggregationMax, "200"},
		{AggregationCount, "3"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.agg), func(t *testing.T) {
			bonus := newTable(t, "Bonus", HitPolicyCollect,
				[]string{"years"}, []string{"bonus"},
				[]string{">= 1", "100"},
				[]string{">= 5", "200"},
				[]string{"-", "50"},
				[]string{"> 10", "1000"},
			)
			bonus.Aggregation = tc.agg

			ev := Evaluate(bonus, map[string]Value{"years": num(6, "6")})
			if got := ev.Outputs["bonus"]; got != tc.want {
				t.Errorf("%s = %q, want %q", tc.agg, got, tc.want)
			}
		})
	}
}

func TestEvaluateCollectNonNumeric(t *testing.T) {
	tags := newTable(t, "Tags", HitPolicyCollect,
		[]string{"x"}, []string{"tag"},
		[]string{"-", "alpha"},
		[]string{"-", "beta"},
	)
	tags.Aggregation = AggregationSum

	ev := Evaluate(tags, map[string]Value{"x": num(1, "1")})
	if tag, ok := ev.Outputs["tag"]; ok {
		t.Errorf("tag = %q, want the output omitted", tag)
	}
	if len(ev.MatchedRules) != 2 {
		t.Errorf("matched %d rules, want 2", len(ev.MatchedRules))
	}
	if !strings.Contains(strings.Join(ev.Explanation, "\n"), "SUM of tag omitted: no numeric outputs") {
		t.Errorf("explanation should report the omitted aggregation: %v", ev.Explanation)
	}
}

func TestRuleLabels(t *testing.T) {
	got := RuleLabels([]Rule{{Index: 0, ID: "lowRisk"}, {Index: 4}})
	if len(got) != 2 || got[0] != "lowRisk" || got[1] != "#5" {
		t.Errorf("RuleLabels() = %v, want [lowRisk #5]", got)
	}
}
