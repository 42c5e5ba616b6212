package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/processgpt/dmnrules/multitenantengine"
	"github.com/processgpt/dmnrules/rules"
)

const riskDMN = `<definitions xmlns="https://www.omg.org/spec/DMN/20191111/MODEL/" id="loan" name="Loans">
  <decision id="loanRisk" name="Loan Risk">
    <decisionTable id="loanRiskTable" hitPolicy="UNIQUE">
      <input label="Credit Score"><inputExpression typeRef="number"><text>creditScore</text></inputExpression></input>
      <input label="Income"><inputExpression typeRef="number"><text>income</text></inputExpression></input>
      <output name="risk"/>
      <rule id="low"><inputEntry><text>&gt;= 700</text></inputEntry><inputEntry><text>&gt;= 40000</text></inputEntry><outputEntry><text>"low"</text></outputEntry></rule>
      <rule id="high"><inputEntry><text>&lt; 700</text></inputEntry><inputEntry><text>-</text></inputEntry><outputEntry><text>"high"</text></outputEntry></rule>
    </decisionTable>
  </decision>
</definitions>`

func newTestTool(t *testing.T, withModel bool) *DMNRuleTool {
	t.Helper()
	ctx := context.Background()

	store := rules.NewInMemoryModelStore()
	if withModel {
		err := store.Add(ctx, &rules.StoredModel{
			ID: "loans", Name: "Loans", XML: riskDMN, Type: rules.ModelTypeDMN, Owner: "alice", Tenant: "acme",
		})
		if err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	mgr := multitenantengine.NewManager(store, multitenantengine.DefaultConfig(), nil)
	tool, err := NewDMNRuleTool(ctx, mgr, "alice", "acme")
	if err != nil {
		t.Fatalf("NewDMNRuleTool() failed: %v", err)
	}
	return tool
}

func TestAnswer(t *testing.T) {
	tool := newTestTool(t, true)

	testCases := []struct {
		name     string
		query    string
		facts    string
		contains []string
	}{
		{
			name:     "empty query",
			query:    "  ",
			contains: []string{"Please provide a query"},
		},
		{
			name:     "rule applied from text",
			query:    "risk for creditScore 720 and income 50000",
			contains: []string{"Loan Risk (UNIQUE): matched rules low", "- risk: low"},
		},
		{
			name:     "rule applied from context",
			query:    "what is the credit risk",
			facts:    `{"creditScore": 610}`,
			contains: []string{"matched rules high", "- risk: high"},
		},
		{
			name:     "how question describes rules",
			query:    "How is loan risk decided?",
			contains: []string{"Loans / Loan Risk (UNIQUE)", "creditScore >= 700 AND income >= 40000 → risk=low"},
		},
		{
			name:     "korean how question",
			query:    "대출 위험은 어떻게 결정되나요",
			contains: []string{"- inputs: creditScore, income"},
		},
		{
			name:     "no rule applied lists related tables",
			query:    "risk for creditScore 720",
			contains: []string{"No rule applied to 'risk for creditScore 720'", "'Loans / Loan Risk' (inputs: creditScore, income)"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tool.Answer(context.Background(), tc.query, tc.facts)
			if err != nil {
				t.Fatalf("Answer() failed: %v", err)
			}
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Answer(%q) missing %q:\n%s", tc.query, want, got)
				}
			}
		})
	}
}

func TestAnswerInvalidContext(t *testing.T) {
	tool := newTestTool(t, true)

	if _, err := tool.Answer(context.Background(), "risk", "[1, 2]"); err == nil {
		t.Error("Answer() should reject a context that is not a JSON object")
	}
}

func TestAnswerWithoutRules(t *testing.T) {
	tool := newTestTool(t, false)

	got, err := tool.Answer(context.Background(), "risk for creditScore 720", "")
	if err != nil {
		t.Fatalf("Answer() failed: %v", err)
	}
	if got != "No DMN rules found for user 'alice'." {
		t.Errorf("Answer() = %q", got)
	}
}

func TestAsksHow(t *testing.T) {
	testCases := []struct {
		query string
		want  bool
	}{
		{"How does approval work?", true},
		{"explain the shipping rules", true},
		{"what is the process", true},
		{"showhow 5", false},
		{"risk for creditScore 720", false},
		{"승인 절차를 알려줘", true},
	}

	for _, tc := range testCases {
		if got := asksHow(tc.query); got != tc.want {
			t.Errorf("asksHow(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestHandle(t *testing.T) {
	tool := newTestTool(t, true)

	def := tool.Definition()
	if def.Name != Name {
		t.Errorf("Definition().Name = %q, want %q", def.Name, Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = Name
	req.Params.Arguments = map[string]any{"query": "risk for creditScore 650"}

	res, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if res.IsError || len(res.Content) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "- risk: high") {
		t.Errorf("Handle() content = %+v", res.Content[0])
	}

	req.Params.Arguments = map[string]any{"query": "risk", "context": "not json"}
	res, err = tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if !res.IsError {
		t.Error("invalid context should produce a tool error result")
	}
}

func TestFormatEvaluation(t *testing.T) {
	ev := &rules.EvaluationResult{
		TableName:    "Discount",
		HitPolicy:    rules.HitPolicyUnique,
		MatchedRules: []rules.Rule{{Index: 1}},
		Outputs:      map[string]string{"rate": "10", "code": "GOLD"},
		Ambiguous:    true,
	}

	want := "Discount (UNIQUE): matched rules #2\n- code: GOLD\n- rate: 10\nNote: more than one rule matched a UNIQUE table (EvaluationAmbiguous)."
	if got := FormatEvaluation(ev); got != want {
		t.Errorf("FormatEvaluation() =\n%s\nwant\n%s", got, want)
	}
}
