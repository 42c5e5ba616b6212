// Package tool exposes the rule engine as an MCP tool for agents.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/processgpt/dmnrules/internal/logger"
	"github.com/processgpt/dmnrules/multitenantengine"
	"github.com/processgpt/dmnrules/rules"
)

// Name is the MCP tool name
const Name = "dmn_rule"

// describeRules caps how many rules per table a "how does it work" answer lists
const describeRules = 5

var howKeywords = []string{"how", "process", "procedure", "explain", "어떻게", "방법", "과정", "절차"}

// DMNRuleTool answers questions for one owner using that owner's decision tables
type DMNRuleTool struct {
	manager *multitenantengine.Manager
	owner   string
	tenant  string
}

// NewDMNRuleTool registers the owner's scope and preloads its rules.
// A store failure is returned; an owner with no rules is not an error.
func NewDMNRuleTool(ctx context.Context, manager *multitenantengine.Manager, owner, tenant string) (*DMNRuleTool, error) {
	snap, err := manager.Open(ctx, owner, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for %s/%s: %w", tenant, owner, err)
	}

	logger.Info("DMN rule tool initialized",
		"tenant", tenant,
		"owner", owner,
		"tables", len(snap.Tables()),
	)
	return &DMNRuleTool{manager: manager, owner: owner, tenant: tenant}, nil
}

// Definition returns the MCP tool schema
func (t *DMNRuleTool) Definition() mcp.Tool {
	return mcp.NewTool(Name,
		mcp.WithDescription("Answers questions using the caller's DMN decision tables. "+
			"Selects the tables relevant to the query, resolves their inputs from the query text "+
			"and the optional context, and reports the matched rules and outputs. "+
			"Questions asking how a process works return a summary of the relevant rules instead."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Question or statement to evaluate, e.g. \"creditScore 720 and income 50000\""),
		),
		mcp.WithString("context",
			mcp.Description("Optional JSON object of known facts, e.g. {\"applicant\": {\"age\": 30}}"),
		),
	)
}

// Handle is the MCP tool handler
func (t *DMNRuleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	factsJSON := req.GetString("context", "")

	answer, err := t.Answer(ctx, query, factsJSON)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// Answer produces the tool's text response
func (t *DMNRuleTool) Answer(ctx context.Context, query, factsJSON string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a query to analyze.", nil
	}

	facts, err := parseFacts(factsJSON)
	if err != nil {
		return "", err
	}

	snap, err := t.manager.Snapshot(t.owner, t.tenant)
	if err != nil {
		return "", err
	}
	tables := snap.Tables()
	if len(tables) == 0 {
		return fmt.Sprintf("No DMN rules found for user '%s'.", t.owner), nil
	}

	if asksHow(query) {
		return describe(query, related(snap.Engine, query)), nil
	}

	result, err := t.manager.RunQuery(ctx, t.owner, t.tenant, rules.Query{Text: query, Facts: facts})
	if err != nil {
		return "", fmt.Errorf("failed to evaluate query: %w", err)
	}
	if result.Applied() {
		return FormatEvaluation(result.Evaluation), nil
	}

	return listRelated(query, related(snap.Engine, query)), nil
}

func parseFacts(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var facts map[string]any
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, fmt.Errorf("context must be a JSON object: %w", err)
	}
	return facts, nil
}

// asksHow reports whether the query asks how a process works rather than for a decision.
// Korean keywords are matched as substrings since they usually carry particles.
func asksHow(query string) bool {
	lower := strings.ToLower(query)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, k := range howKeywords {
		if k[0] >= utf8.RuneSelf {
			if strings.Contains(lower, k) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == k {
				return true
			}
		}
	}
	return false
}

// related returns the tables matching the query, or every table when none does
func related(engine *rules.Engine, query string) []*rules.DecisionTable {
	matches := engine.Match(query)
	if len(matches) == 0 {
		return engine.Tables()
	}
	tables := make([]*rules.DecisionTable, len(matches))
	for i, m := range matches {
		tables[i] = m.Table
	}
	return tables
}

func describe(query string, tables []*rules.DecisionTable) string {
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, rules.Describe(t, describeRules))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("No rule description found for '%s'.", query)
	}
	return strings.Join(parts, "\n\n")
}

func listRelated(query string, tables []*rules.DecisionTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No rule applied to '%s'. Related rules:", query)
	for _, t := range tables {
		name := t.Name
		if t.ModelName != "" && t.ModelName != t.Name {
			name = t.ModelName + " / " + t.Name
		}
		fmt.Fprintf(&b, "\n- '%s' (inputs: %s)", name, inputNames(t))
	}
	return b.String()
}

func inputNames(t *rules.DecisionTable) string {
	names := make([]string, len(t.Inputs))
	for i, in := range t.Inputs {
		names[i] = in.Name()
	}
	return strings.Join(names, ", ")
}

// FormatEvaluation renders an applied evaluation as text
func FormatEvaluation(ev *rules.EvaluationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): matched rules %s\n", ev.TableName, ev.HitPolicy, strings.Join(rules.RuleLabels(ev.MatchedRules), ", "))

	keys := make([]string, 0, len(ev.Outputs))
	for k := range ev.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, ev.Outputs[k])
	}

	if ev.Ambiguous {
		fmt.Fprintf(&b, "Note: more than one rule matched a UNIQUE table (%s).\n", rules.EvaluationAmbiguous)
	}
	return strings.TrimRight(b.String(), "\n")
}
