package main

import (
	"time"

	"github.com/processgpt/dmnrules/rules"
)

// API request and response models

// QueryRequest is the body of POST .../query
type QueryRequest struct {
	Query string         `json:"query" example:"risk for creditScore 720 income 50000"`
	Facts map[string]any `json:"facts,omitempty"`
}

// CandidateResponse is one table considered for a query
type CandidateResponse struct {
	TableID   string   `json:"tableId"`
	TableName string   `json:"tableName"`
	Score     float64  `json:"score"`
	Shared    []string `json:"shared"`
}

// QueryResponse is the result of a query. NoMatchFound is reported with status 200.
type QueryResponse struct {
	QueryID      string              `json:"queryId"`
	Outcome      rules.Outcome       `json:"outcome" example:"rule_applied"`
	TableID      string              `json:"tableId,omitempty"`
	TableName    string              `json:"tableName,omitempty"`
	HitPolicy    rules.HitPolicy     `json:"hitPolicy,omitempty"`
	MatchedRules []string            `json:"matchedRules,omitempty"`
	Outputs      map[string]string   `json:"outputs,omitempty"`
	Ambiguous    bool                `json:"ambiguous,omitempty"`
	Candidates   []CandidateResponse `json:"candidates"`
	Explanation  []string            `json:"explanation"`
	Duration     string              `json:"evaluationTime" example:"120µs"`
}

func newQueryResponse(queryID string, res *rules.QueryResult, d time.Duration) QueryResponse {
	resp := QueryResponse{
		QueryID:     queryID,
		Outcome:     res.Outcome,
		Candidates:  []CandidateResponse{},
		Explanation: res.Explanation,
		Duration:    d.String(),
	}
	for _, c := range res.Candidates {
		resp.Candidates = append(resp.Candidates, CandidateResponse{
			TableID:   c.Table.ID,
			TableName: c.Table.Name,
			Score:     c.Score,
			Shared:    c.Shared,
		})
	}
	if ev := res.Evaluation; ev != nil {
		resp.TableID = ev.TableID
		resp.TableName = ev.TableName
		resp.HitPolicy = ev.HitPolicy
		resp.MatchedRules = rules.RuleLabels(ev.MatchedRules)
		resp.Outputs = ev.Outputs
		resp.Ambiguous = ev.Ambiguous
		resp.Explanation = append(append([]string(nil), res.Explanation...), ev.Explanation...)
	}
	return resp
}

// TableResponse describes one indexed decision table
type TableResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ModelID     string          `json:"modelId"`
	ModelName   string          `json:"modelName"`
	HitPolicy   rules.HitPolicy `json:"hitPolicy"`
	Inputs      []string        `json:"inputs"`
	Outputs     []string        `json:"outputs"`
	Rules       int             `json:"rules"`
	Description string          `json:"description,omitempty"`
}

func newTableResponse(t *rules.DecisionTable, describe bool) TableResponse {
	resp := TableResponse{
		ID:        t.ID,
		Name:      t.Name,
		ModelID:   t.ModelID,
		ModelName: t.ModelName,
		HitPolicy: t.HitPolicy,
		Inputs:    make([]string, len(t.Inputs)),
		Outputs:   make([]string, len(t.Outputs)),
		Rules:     len(t.Rules),
	}
	for i, in := range t.Inputs {
		resp.Inputs[i] = in.Name()
	}
	for i, out := range t.Outputs {
		resp.Outputs[i] = out.Key()
	}
	if describe {
		resp.Description = rules.Describe(t, 0)
	}
	return resp
}

// TablesListResponse is the response of GET .../tables
type TablesListResponse struct {
	Version  uint64          `json:"version"`
	LoadedAt time.Time       `json:"loadedAt"`
	Tables   []TableResponse `json:"tables"`
}

// ModelRequest is the body for creating or updating a stored DMN model
type ModelRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name" example:"Loan risk"`
	XML  string `json:"xml"`
}

// ModelResponse is a stored model in API responses
type ModelResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Tenant    string    `json:"tenant"`
	XML       string    `json:"xml,omitempty"`
	Tables    int       `json:"tables"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newModelResponse(m *rules.StoredModel, withXML bool) ModelResponse {
	resp := ModelResponse{
		ID:        m.ID,
		Name:      m.Name,
		Owner:     m.Owner,
		Tenant:    m.Tenant,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if model, err := rules.ParseModel(*m); err == nil {
		resp.Tables = len(model.Tables)
	}
	if withXML {
		resp.XML = m.XML
	}
	return resp
}

// ModelsListResponse is the response of GET .../models
type ModelsListResponse struct {
	Models []ModelResponse `json:"models"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string           `json:"status" example:"healthy"`
	Error    string           `json:"error,omitempty"`
	Scopes   int              `json:"scopesLoaded"`
	Counters map[string]int64 `json:"counters"`
}
