package rules

import (
	"fmt"
	"strings"
)

// HitPolicy decides how simultaneously matching rules of a table are resolved
type HitPolicy string

const (
	HitPolicyUnique      HitPolicy = "UNIQUE"
	HitPolicyFirst       HitPolicy = "FIRST"
	HitPolicyPriority    HitPolicy = "PRIORITY"
	HitPolicyAny         HitPolicy = "ANY"
	HitPolicyCollect     HitPolicy = "COLLECT"
	HitPolicyRuleOrder   HitPolicy = "RULE ORDER"
	HitPolicyOutputOrder HitPolicy = "OUTPUT ORDER"
)

// ParseHitPolicy normalizes the hitPolicy attribute of a decision table.
// An empty value defaults to UNIQUE. Underscores are accepted in place of spaces.
func ParseHitPolicy(s string) (HitPolicy, bool) {
	s = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	if s == "" {
		return HitPolicyUnique, true
	}
	switch hp := HitPolicy(s); hp {
	case HitPolicyUnique, HitPolicyFirst, HitPolicyPriority, HitPolicyAny,
		HitPolicyCollect, HitPolicyRuleOrder, HitPolicyOutputOrder:
		return hp, true
	}
	return "", false
}

// SingleHit reports whether the policy keeps only one matching rule
func (hp HitPolicy) SingleHit() bool {
	return hp == HitPolicyUnique || hp == HitPolicyFirst
}

// Aggregation is the optional COLLECT aggregator of a decision table
type Aggregation string

const (
	AggregationNone  Aggregation = ""
	AggregationSum   Aggregation = "SUM"
	AggregationMin   Aggregation = "MIN"
	AggregationMax   Aggregation = "MAX"
	AggregationCount Aggregation = "COUNT"
)

// DecisionModel is one parsed DMN document belonging to an owner within a tenant.
// It is immutable once the loader has built it.
type DecisionModel struct {
	ID     string
	Name   string
	Owner  string
	Tenant string
	Tables []*DecisionTable
}

// DecisionTable is a single decision table with its clauses and rules in document order
type DecisionTable struct {
	ID          string
	Name        string
	DecisionID  string
	ModelID     string
	ModelName   string
	HitPolicy   HitPolicy
	Aggregation Aggregation
	Inputs      []InputClause
	Outputs     []OutputClause
	Rules       []Rule
}

// InputClause declares one condition column of a table
type InputClause struct {
	ID         string
	Label      string
	Expression string
	TypeRef    string
}

// Name returns the variable the clause binds to
func (c InputClause) Name() string {
	if c.Expression != "" {
		return c.Expression
	}
	return c.Label
}

// OutputClause declares one result column of a table
type OutputClause struct {
	ID      string
	Label   string
	Name    string
	TypeRef string
}

// Key returns the name under which the clause's values are reported
func (c OutputClause) Key() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Label != "":
		return c.Label
	}
	return c.ID
}

// Rule is one row of a decision table.
// Conditions align with the table's Inputs and Outputs with its Outputs.
type Rule struct {
	Index       int
	ID          string
	Description string
	Conditions  []Condition
	Outputs     []string
}

// RuleLabels names each rule by its ID, or its 1-based position when it has none
func RuleLabels(rs []Rule) []string {
	labels := make([]string, len(rs))
	for i, r := range rs {
		if r.ID != "" {
			labels[i] = r.ID
		} else {
			labels[i] = fmt.Sprintf("#%d", r.Index+1)
		}
	}
	return labels
}

// MatchResult is a candidate table selected for a query
type MatchResult struct {
	Table  *DecisionTable
	Score  float64
	Order  int
	Shared []string
}

// EvaluationResult contains the outcome of evaluating one decision table
type EvaluationResult struct {
	TableID      string
	TableName    string
	HitPolicy    HitPolicy
	MatchedRules []Rule
	Outputs      map[string]string
	Explanation  []string
	Ambiguous    bool
}

// Matched reports whether at least one rule satisfied all of its conditions
func (r *EvaluationResult) Matched() bool {
	return r != nil && len(r.MatchedRules) > 0
}

// Outcome distinguishes an applied rule from a negative lookup
type Outcome string

const (
	OutcomeRuleApplied  Outcome = "rule_applied"
	OutcomeNoMatchFound Outcome = "no_match_found"
)

// Query is a single lookup against an owner's decision tables.
// Facts is optional structured context; it takes precedence over values found in Text.
type Query struct {
	Text  string
	Facts map[string]any
}

// QueryResult is returned by Engine.Run. Evaluation is nil unless Outcome is OutcomeRuleApplied.
type QueryResult struct {
	Outcome     Outcome
	Evaluation  *EvaluationResult
	Candidates  []MatchResult
	Explanation []string
}

// Applied reports whether a rule produced a decision
func (r *QueryResult) Applied() bool {
	return r != nil && r.Outcome == OutcomeRuleApplied
}
