package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LoadResult is the outcome of loading one owner's decision models
type LoadResult struct {
	Models []*DecisionModel

	// Warnings holds one *ParseError per skipped document
	Warnings []error
}

// Tables flattens the loaded models' tables in load order
func (r *LoadResult) Tables() []*DecisionTable {
	var tables []*DecisionTable
	for _, m := range r.Models {
		tables = append(tables, m.Tables...)
	}
	return tables
}

// Loader fetches stored models and parses them into decision tables
type Loader struct {
	store ModelStore
}

// NewLoader creates a loader reading from store
func NewLoader(store ModelStore) *Loader {
	return &Loader{store: store}
}

// Load fetches and parses every DMN document of the owner within the tenant.
// It fails only when the store cannot be read; a malformed document is skipped and reported in Warnings.
func (l *Loader) Load(ctx context.Context, owner, tenant string) (*LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}

	docs, err := l.store.ListModels(ctx, owner, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load decision models: %w", err)
	}

	res := &LoadResult{}
	for _, doc := range docs {
		if doc.Deleted || !strings.EqualFold(doc.Type, ModelTypeDMN) {
			continue
		}

		model, err := ParseModel(doc)
		if err != nil {
			slog.Warn("Skipping malformed decision model",
				"owner", owner,
				"tenant", tenant,
				"model_id", doc.ID,
				"error", err,
			)
			res.Warnings = append(res.Warnings, err)
			continue
		}

		if len(model.Tables) == 0 {
			slog.Debug("Decision model has no decision tables", "model_id", doc.ID)
		}
		res.Models = append(res.Models, model)
	}

	return res, nil
}
