package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/processgpt/dmnrules/internal/logger"
)

// DefaultMinScore is the relevance a table must exceed to be considered for a query
const DefaultMinScore = 0.0

// Engine answers queries against a fixed set of decision tables.
// It is built once per index snapshot and never mutated, so concurrent Run calls need no locking.
type Engine struct {
	tables     []*DecisionTable
	candidates []candidate
	resolvers  map[*DecisionTable]*InputResolver
	minScore   float64
}

// NewEngine prepares label sets and input resolvers for every table
func NewEngine(tables []*DecisionTable, minScore float64) *Engine {
	en := &Engine{
		tables:     tables,
		candidates: newCandidates(tables),
		resolvers:  make(map[*DecisionTable]*InputResolver, len(tables)),
		minScore:   minScore,
	}
	for _, t := range tables {
		en.resolvers[t] = NewInputResolver(t)
	}
	return en
}

// Tables returns the tables in load order. Callers must not modify them.
func (en *Engine) Tables() []*DecisionTable {
	return en.tables
}

// ResolverIssues lists input expressions that fell back to key lookup, keyed by table ID
func (en *Engine) ResolverIssues() map[string][]string {
	issues := make(map[string][]string)
	for _, t := range en.tables {
		if r := en.resolvers[t]; len(r.Issues) > 0 {
			issues[t.ID] = r.Issues
		}
	}
	return issues
}

// Match ranks the engine's tables against the query text
func (en *Engine) Match(text string) []MatchResult {
	return matchCandidates(Tokenize(text), en.candidates, en.minScore)
}

// Run matches the query and evaluates candidates in rank order.
// The first table with at least one fully matching rule decides the result;
// otherwise the outcome is OutcomeNoMatchFound.
func (en *Engine) Run(q Query) *QueryResult {
	res := &QueryResult{Outcome: OutcomeNoMatchFound}

	if strings.TrimSpace(q.Text) == "" && len(q.Facts) == 0 {
		res.Explanation = append(res.Explanation, "empty query")
		return res
	}
	if len(en.tables) == 0 {
		res.Explanation = append(res.Explanation, "no decision tables are loaded")
		return res
	}

	res.Candidates = en.Match(matchText(q))
	if len(res.Candidates) == 0 {
		res.Explanation = append(res.Explanation, "no decision table is relevant to the query")
		return res
	}

	for _, m := range res.Candidates {
		inputs := en.resolvers[m.Table].Resolve(q)
		logger.Trace("Evaluating candidate table", "table", m.Table.ID, "score", m.Score, "shared", m.Shared, "inputs", len(inputs))
		if len(inputs) == 0 {
			res.Explanation = append(res.Explanation,
				fmt.Sprintf("table %q (score %.2f): no inputs could be resolved from the query", m.Table.Name, m.Score))
			continue
		}

		ev := Evaluate(m.Table, inputs)
		if ev.Matched() {
			res.Outcome = OutcomeRuleApplied
			res.Evaluation = ev
			res.Explanation = append(res.Explanation,
				fmt.Sprintf("table %q selected (score %.2f, shared terms %s)", m.Table.Name, m.Score, strings.Join(m.Shared, ", ")))
			return res
		}
		res.Explanation = append(res.Explanation,
			fmt.Sprintf("table %q (score %.2f): %s", m.Table.Name, m.Score, strings.Join(ev.Explanation, "; ")))
	}

	return res
}

// matchText appends fact keys to the query text so facts-only queries still select tables
func matchText(q Query) string {
	if len(q.Facts) == 0 {
		return q.Text
	}
	keys := make([]string, 0, len(q.Facts))
	for k := range q.Facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return q.Text + " " + strings.Join(keys, " ")
}
