package rules

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		input string
		want  []string
	}{
		{"What is the risk for creditScore 720?", []string{"risk", "credit", "score", "720"}},
		{"Shipping-method, shipping METHOD", []string{"shipping", "method"}},
		{"a I x", nil},
		{"대출 위험 등급", []string{"대출", "위험", "등급"}},
		{"신용점수가 720인데 심사 결과는?", []string{"신용점수", "720", "심사", "결과"}},
		{"나이 나이가", []string{"나이"}},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := Tokenize(tc.input); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestTableTerms(t *testing.T) {
	tables := mustParse(t, loanRiskDMN)

	want := []string{"loan", "risk", "credit", "score", "income"}
	if got := TableTerms(tables[0]); !reflect.DeepEqual(got, want) {
		t.Errorf("TableTerms(risk) = %v, want %v", got, want)
	}

	// "US" is a stopword; numeric literals never become terms
	want = []string{"shipping", "method", "region", "eu", "uk"}
	if got := TableTerms(tables[1]); !reflect.DeepEqual(got, want) {
		t.Errorf("TableTerms(shipping) = %v, want %v", got, want)
	}
}

func TestMatch(t *testing.T) {
	tables := mustParse(t, loanRiskDMN)

	testCases := []struct {
		name     string
		query    string
		minScore float64
		want     []string
	}{
		{"risk query", "what is the risk for creditScore 720 income 50000", 0, []string{"loanRiskTable"}},
		{"shipping query", "shipping method for region EU", 0, []string{"shippingTable"}},
		{"unrelated", "weather tomorrow", 0, nil},
		{"only stopwords", "what is it", 0, nil},
		{"below threshold", "loan", 0.2, nil},
		{"above threshold", "loan", 0.1, []string{"loanRiskTable"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, m := range Match(tc.query, tables, tc.minScore) {
				got = append(got, m.Table.ID)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Match(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestMatchScoring(t *testing.T) {
	tables := mustParse(t, loanRiskDMN)

	results := Match("loan risk for region", tables, 0)
	if len(results) != 2 {
		t.Fatalf("Match() returned %d results, want 2", len(results))
	}
	if results[0].Table.ID != "loanRiskTable" || results[0].Score != 0.4 {
		t.Errorf("first result = %s (%.2f), want loanRiskTable (0.40)", results[0].Table.ID, results[0].Score)
	}
	if results[1].Table.ID != "shippingTable" || results[1].Score != 0.2 {
		t.Errorf("second result = %s (%.2f), want shippingTable (0.20)", results[1].Table.ID, results[1].Score)
	}
	if !reflect.DeepEqual(results[0].Shared, []string{"loan", "risk"}) {
		t.Errorf("Shared = %v, want [loan risk]", results[0].Shared)
	}
}

func TestMatchTiesKeepLoadOrder(t *testing.T) {
	a := newTable(t, "fee table", HitPolicyFirst, []string{"fee"}, []string{"amount"}, []string{"-", "1"})
	b := newTable(t, "fee schedule", HitPolicyFirst, []string{"fee"}, []string{"amount"}, []string{"-", "2"})
	b.ID = "b"
	a.ID = "a"

	for i := 0; i < 20; i++ {
		results := Match("fee", []*DecisionTable{a, b}, 0)
		if len(results) != 2 || results[0].Table != a || results[1].Table != b {
			t.Fatalf("tied tables should keep load order, got %v", results)
		}
	}

	results := Match("fee", []*DecisionTable{b, a}, 0)
	if results[0].Table != b {
		t.Errorf("order should follow the input slice, got %s first", results[0].Table.ID)
	}
}
