package rules

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// DMNNamespace is the DMN 1.3 model namespace
const DMNNamespace = "https://www.omg.org/spec/DMN/20191111/MODEL/"

type xmlDefinitions struct {
	XMLName   xml.Name
	ID        string        `xml:"id,attr"`
	Name      string        `xml:"name,attr"`
	Decisions []xmlDecision `xml:"decision"`
}

type xmlDecision struct {
	XMLName       xml.Name
	ID            string            `xml:"id,attr"`
	Name          string            `xml:"name,attr"`
	DecisionTable *xmlDecisionTable `xml:"decisionTable"`
}

type xmlDecisionTable struct {
	XMLName     xml.Name
	ID          string      `xml:"id,attr"`
	HitPolicy   string      `xml:"hitPolicy,attr,omitempty"`
	Aggregation string      `xml:"aggregation,attr,omitempty"`
	Inputs      []xmlInput  `xml:"input"`
	Outputs     []xmlOutput `xml:"output"`
	Rules       []xmlRule   `xml:"rule"`
}

type xmlInput struct {
	XMLName         xml.Name
	ID              string             `xml:"id,attr,omitempty"`
	Label           string             `xml:"label,attr,omitempty"`
	InputExpression xmlInputExpression `xml:"inputExpression"`
}

type xmlInputExpression struct {
	ID      string `xml:"id,attr,omitempty"`
	TypeRef string `xml:"typeRef,attr,omitempty"`
	Text    string `xml:"text"`
}

type xmlOutput struct {
	XMLName xml.Name
	ID      string `xml:"id,attr,omitempty"`
	Label   string `xml:"label,attr,omitempty"`
	Name    string `xml:"name,attr,omitempty"`
	TypeRef string `xml:"typeRef,attr,omitempty"`
}

type xmlRule struct {
	XMLName      xml.Name
	ID           string     `xml:"id,attr,omitempty"`
	Description  string     `xml:"description,omitempty"`
	InputEntries []xmlEntry `xml:"inputEntry"`
	OutputEntry  []xmlEntry `xml:"outputEntry"`
}

type xmlEntry struct {
	XMLName xml.Name
	ID      string `xml:"id,attr,omitempty"`
	Text    string `xml:"text"`
}

// Parse reads a DMN 1.3 document and returns its decision tables in document order
func Parse(data []byte) ([]*DecisionTable, error) {
	return parseDocument(data, "")
}

// ParseModel parses a stored document into a DecisionModel
func ParseModel(doc StoredModel) (*DecisionModel, error) {
	name := doc.ID
	if name == "" {
		name = doc.Name
	}
	tables, err := parseDocument([]byte(doc.XML), name)
	if err != nil {
		return nil, err
	}

	for _, t := range tables {
		t.ModelID = doc.ID
		t.ModelName = doc.Name
	}

	return &DecisionModel{
		ID:     doc.ID,
		Name:   doc.Name,
		Owner:  doc.Owner,
		Tenant: doc.Tenant,
		Tables: tables,
	}, nil
}

func parseDocument(data []byte, docName string) ([]*DecisionTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Document: docName, Message: "empty document"}
	}

	var defs xmlDefinitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return nil, &ParseError{Document: docName, Message: "invalid XML", Cause: err}
	}

	ns := defs.XMLName.Space
	if defs.XMLName.Local != "definitions" {
		return nil, &ParseError{Document: docName, Message: fmt.Sprintf("root element is %q, want definitions", defs.XMLName.Local)}
	}
	if ns != DMNNamespace && ns != "" {
		return nil, &ParseError{Document: docName, Message: fmt.Sprintf("unsupported namespace %q", ns)}
	}

	var tables []*DecisionTable
	for _, d := range defs.Decisions {
		if d.XMLName.Space != ns || d.DecisionTable == nil || d.DecisionTable.XMLName.Space != ns {
			continue
		}
		t, err := buildTable(d, ns)
		if err != nil {
			err.Document = docName
			return nil, err
		}
		tables = append(tables, t)
	}

	return tables, nil
}

func buildTable(d xmlDecision, ns string) (*DecisionTable, *ParseError) {
	xt := d.DecisionTable

	t := &DecisionTable{
		ID:         firstNonEmpty(xt.ID, d.ID),
		Name:       firstNonEmpty(d.Name, d.ID, xt.ID),
		DecisionID: d.ID,
	}

	hp, ok := ParseHitPolicy(xt.HitPolicy)
	if !ok {
		return nil, &ParseError{Table: t.ID, Message: fmt.Sprintf("unrecognized hit policy %q", xt.HitPolicy)}
	}
	t.HitPolicy = hp

	if agg := strings.ToUpper(strings.TrimSpace(xt.Aggregation)); agg != "" {
		switch a := Aggregation(agg); a {
		case AggregationSum, AggregationMin, AggregationMax, AggregationCount:
			if hp != HitPolicyCollect {
				return nil, &ParseError{Table: t.ID, Message: fmt.Sprintf("aggregation %s requires COLLECT hit policy", a)}
			}
			t.Aggregation = a
		default:
			return nil, &ParseError{Table: t.ID, Message: fmt.Sprintf("unrecognized aggregation %q", xt.Aggregation)}
		}
	}

	for _, in := range xt.Inputs {
		if in.XMLName.Space != ns {
			continue
		}
		t.Inputs = append(t.Inputs, InputClause{
			ID:         in.ID,
			Label:      strings.TrimSpace(in.Label),
			Expression: strings.TrimSpace(in.InputExpression.Text),
			TypeRef:    in.InputExpression.TypeRef,
		})
	}

	for _, out := range xt.Outputs {
		if out.XMLName.Space != ns {
			continue
		}
		t.Outputs = append(t.Outputs, OutputClause{
			ID:      out.ID,
			Label:   strings.TrimSpace(out.Label),
			Name:    strings.TrimSpace(out.Name),
			TypeRef: out.TypeRef,
		})
	}

	for _, xr := range xt.Rules {
		if xr.XMLName.Space != ns {
			continue
		}
		idx := len(t.Rules)
		ruleName := firstNonEmpty(xr.ID, strconv.Itoa(idx+1))

		inputs := entriesIn(xr.InputEntries, ns)
		outputs := entriesIn(xr.OutputEntry, ns)
		if len(inputs) != len(t.Inputs) {
			return nil, &ParseError{Table: t.ID, Rule: ruleName,
				Message: fmt.Sprintf("rule has %d input entries, table declares %d inputs", len(inputs), len(t.Inputs))}
		}
		if len(outputs) != len(t.Outputs) {
			return nil, &ParseError{Table: t.ID, Rule: ruleName,
				Message: fmt.Sprintf("rule has %d output entries, table declares %d outputs", len(outputs), len(t.Outputs))}
		}

		r := Rule{
			Index:       idx,
			ID:          xr.ID,
			Description: strings.TrimSpace(xr.Description),
			Conditions:  make([]Condition, len(inputs)),
			Outputs:     make([]string, len(outputs)),
		}
		for i, e := range inputs {
			c, err := ParseCondition(e.Text)
			if err != nil {
				return nil, &ParseError{Table: t.ID, Rule: ruleName,
					Message: fmt.Sprintf("input entry %d", i+1), Cause: err}
			}
			r.Conditions[i] = c
		}
		for i, e := range outputs {
			r.Outputs[i] = ParseValue(e.Text).Text
		}
		t.Rules = append(t.Rules, r)
	}

	return t, nil
}

func entriesIn(entries []xmlEntry, ns string) []xmlEntry {
	kept := entries[:0:0]
	for _, e := range entries {
		if e.XMLName.Space == ns {
			kept = append(kept, e)
		}
	}
	return kept
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
