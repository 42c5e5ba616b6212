package rules

import (
	"sort"
)

// TableTerms returns the label set a query is scored against: model and table names,
// input labels and expressions, and the literals of Equals and Enumeration conditions.
func TableTerms(t *DecisionTable) []string {
	var b []string
	b = append(b, t.ModelName, t.Name)
	for _, in := range t.Inputs {
		b = append(b, in.Label, in.Expression)
	}
	for _, r := range t.Rules {
		for _, c := range r.Conditions {
			switch c.Kind {
			case ConditionEquals:
				if !c.Value.Numeric {
					b = append(b, c.Value.Text)
				}
			case ConditionEnumeration:
				for _, v := range c.Values {
					if !v.Numeric {
						b = append(b, v.Text)
					}
				}
			}
		}
	}

	seen := make(map[string]bool)
	var terms []string
	for _, s := range b {
		for _, tok := range Tokenize(s) {
			if !seen[tok] {
				seen[tok] = true
				terms = append(terms, tok)
			}
		}
	}
	return terms
}

// candidate is a table with its label set computed once per snapshot
type candidate struct {
	table *DecisionTable
	terms map[string]bool
	order int
}

func newCandidates(tables []*DecisionTable) []candidate {
	cs := make([]candidate, len(tables))
	for i, t := range tables {
		terms := make(map[string]bool)
		for _, tok := range TableTerms(t) {
			terms[tok] = true
		}
		cs[i] = candidate{table: t, terms: terms, order: i}
	}
	return cs
}

// Match scores tables against the query by lexical overlap and returns those above minScore,
// highest score first. Ties keep load order, so identical inputs always rank identically.
func Match(query string, tables []*DecisionTable, minScore float64) []MatchResult {
	return matchCandidates(Tokenize(query), newCandidates(tables), minScore)
}

func matchCandidates(queryTokens []string, cs []candidate, minScore float64) []MatchResult {
	if len(queryTokens) == 0 {
		return nil
	}

	var results []MatchResult
	for _, c := range cs {
		if len(c.terms) == 0 {
			continue
		}
		var shared []string
		for _, tok := range queryTokens {
			if c.terms[tok] {
				shared = append(shared, tok)
			}
		}
		score := float64(len(shared)) / float64(len(c.terms))
		if len(shared) == 0 || score <= minScore {
			continue
		}
		results = append(results, MatchResult{
			Table:  c.table,
			Score:  score,
			Order:  c.order,
			Shared: shared,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Order < results[j].Order
	})

	return results
}
