package rules

import (
	"encoding/xml"
	"fmt"
)

// Serialize renders decision tables as a DMN 1.3 document.
// Parse(Serialize(tables)) reconstructs tables equal to the input, apart from ModelID and ModelName.
func Serialize(definitionsID, name string, tables []*DecisionTable) ([]byte, error) {
	defs := xmlDefinitions{
		XMLName: xml.Name{Space: DMNNamespace, Local: "definitions"},
		ID:      definitionsID,
		Name:    name,
	}

	for _, t := range tables {
		xt := &xmlDecisionTable{
			ID:          t.ID,
			HitPolicy:   string(t.HitPolicy),
			Aggregation: string(t.Aggregation),
		}
		for _, in := range t.Inputs {
			xt.Inputs = append(xt.Inputs, xmlInput{
				ID:    in.ID,
				Label: in.Label,
				InputExpression: xmlInputExpression{
					TypeRef: in.TypeRef,
					Text:    in.Expression,
				},
			})
		}
		for _, out := range t.Outputs {
			xt.Outputs = append(xt.Outputs, xmlOutput{
				ID:      out.ID,
				Label:   out.Label,
				Name:    out.Name,
				TypeRef: out.TypeRef,
			})
		}
		for _, r := range t.Rules {
			if len(r.Conditions) != len(t.Inputs) || len(r.Outputs) != len(t.Outputs) {
				return nil, fmt.Errorf("table %s rule %d: arity does not match clauses", t.ID, r.Index+1)
			}
			xr := xmlRule{ID: r.ID, Description: r.Description}
			for _, c := range r.Conditions {
				xr.InputEntries = append(xr.InputEntries, xmlEntry{Text: c.String()})
			}
			for _, o := range r.Outputs {
				xr.OutputEntry = append(xr.OutputEntry, xmlEntry{Text: formatOutput(o)})
			}
			xt.Rules = append(xt.Rules, xr)
		}

		defs.Decisions = append(defs.Decisions, xmlDecision{
			ID:            t.DecisionID,
			Name:          t.Name,
			DecisionTable: xt,
		})
	}

	out, err := xml.MarshalIndent(defs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DMN document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func formatOutput(s string) string {
	if _, ok := parseNumber(s); ok {
		return s
	}
	return quoteLiteral(s)
}
