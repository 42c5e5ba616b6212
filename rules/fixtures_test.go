package rules

import (
	"testing"
)

const loanRiskDMN = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="https://www.omg.org/spec/DMN/20191111/MODEL/" id="loan" name="Loan Decisions">
  <decision id="loanRisk" name="Loan Risk">
    <decisionTable id="loanRiskTable" hitPolicy="UNIQUE">
      <input id="in1" label="Credit Score">
        <inputExpression typeRef="number"><text>creditScore</text></inputExpression>
      </input>
      <input id="in2" label="Income">
        <inputExpression typeRef="number"><text>income</text></inputExpression>
      </input>
      <output id="out1" name="risk" typeRef="string"/>
      <rule id="lowRisk">
        <description>Good score and stable income</description>
        <inputEntry><text>&gt;= 700</text></inputEntry>
        <inputEntry><text>&gt;= 40000</text></inputEntry>
        <outputEntry><text>"low"</text></outputEntry>
      </rule>
      <rule id="mediumRisk">
        <inputEntry><text>&gt;= 700</text></inputEntry>
        <inputEntry><text>&lt; 40000</text></inputEntry>
        <outputEntry><text>"medium"</text></outputEntry>
      </rule>
      <rule id="highRisk">
        <inputEntry><text>&lt; 700</text></inputEntry>
        <inputEntry><text>-</text></inputEntry>
        <outputEntry><text>"high"</text></outputEntry>
      </rule>
    </decisionTable>
  </decision>
  <decision id="shipping" name="Shipping Method">
    <decisionTable id="shippingTable" hitPolicy="FIRST">
      <input id="in3" label="Region">
        <inputExpression typeRef="string"><text>region</text></inputExpression>
      </input>
      <output id="out2" name="method" typeRef="string"/>
      <output id="out3" name="days" typeRef="number"/>
      <rule>
        <inputEntry><text>"EU", "UK"</text></inputEntry>
        <outputEntry><text>"standard"</text></outputEntry>
        <outputEntry><text>5</text></outputEntry>
      </rule>
      <rule>
        <inputEntry><text>"US"</text></inputEntry>
        <outputEntry><text>"express"</text></outputEntry>
        <outputEntry><text>2</text></outputEntry>
      </rule>
      <rule>
        <inputEntry><text>-</text></inputEntry>
        <outputEntry><text>"economy"</text></outputEntry>
        <outputEntry><text>10</text></outputEntry>
      </rule>
    </decisionTable>
  </decision>
</definitions>`

// plainDMN has no namespace declaration
const plainDMN = `<definitions id="plain" name="Plain">
  <decision id="approval" name="Approval">
    <decisionTable>
      <input label="amount"><inputExpression><text>amount</text></inputExpression></input>
      <output name="approved"/>
      <rule>
        <inputEntry><text>&lt;= 1000</text></inputEntry>
        <outputEntry><text>true</text></outputEntry>
      </rule>
    </decisionTable>
  </decision>
</definitions>`

func mustParse(t *testing.T, doc string) []*DecisionTable {
	t.Helper()
	tables, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	return tables
}

// newTable builds a table whose inputs are named by expression and whose rules are given as entry text
func newTable(t *testing.T, name string, hp HitPolicy, inputs, outputs []string, rows ...[]string) *DecisionTable {
	t.Helper()
	dt := &DecisionTable{ID: name, Name: name, HitPolicy: hp}
	for _, in := range inputs {
		dt.Inputs = append(dt.Inputs, InputClause{Expression: in})
	}
	for _, out := range outputs {
		dt.Outputs = append(dt.Outputs, OutputClause{Name: out})
	}
	for i, row := range rows {
		if len(row) != len(inputs)+len(outputs) {
			t.Fatalf("row %d has %d entries, want %d", i, len(row), len(inputs)+len(outputs))
		}
		r := Rule{Index: i}
		for _, text := range row[:len(inputs)] {
			c, err := ParseCondition(text)
			if err != nil {
				t.Fatalf("ParseCondition(%q) failed: %v", text, err)
			}
			r.Conditions = append(r.Conditions, c)
		}
		r.Outputs = append(r.Outputs, row[len(inputs):]...)
		dt.Rules = append(dt.Rules, r)
	}
	return dt
}

func num(f float64, text string) Value {
	return Value{Text: text, Num: f, Numeric: true}
}

func str(s string) Value {
	return Value{Text: s}
}
