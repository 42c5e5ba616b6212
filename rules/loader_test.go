package rules

import (
	"context"
	"errors"
	"testing"
)

func TestLoaderLoad(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryModelStore()

	broken := newStoredModel("broken", "alice", "acme")
	broken.XML = `<definitions xmlns="https://www.omg.org/spec/DMN/20191111/MODEL/"><decision id="d"><decisionTable hitPolicy="NEVER"/></decision></definitions>`

	empty := newStoredModel("empty", "alice", "acme")
	empty.XML = `<definitions xmlns="https://www.omg.org/spec/DMN/20191111/MODEL/" id="empty"/>`

	for _, m := range []*StoredModel{newStoredModel("loans", "alice", "acme"), broken, empty} {
		if err := store.Add(ctx, m); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	res, err := NewLoader(store).Load(ctx, "alice", "acme")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(res.Models) != 2 {
		t.Fatalf("Load() returned %d models, want 2 (broken skipped)", len(res.Models))
	}
	if res.Models[0].ID != "loans" || res.Models[1].ID != "empty" {
		t.Errorf("models out of order: %s, %s", res.Models[0].ID, res.Models[1].ID)
	}
	if got := len(res.Tables()); got != 2 {
		t.Errorf("Tables() = %d, want 2", got)
	}

	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one", res.Warnings)
	}
	var pe *ParseError
	if !errors.As(res.Warnings[0], &pe) || pe.Document != "broken" {
		t.Errorf("warning should be a ParseError for document broken, got %v", res.Warnings[0])
	}
}

func TestLoaderEmptyScope(t *testing.T) {
	res, err := NewLoader(NewInMemoryModelStore()).Load(context.Background(), "nobody", "acme")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(res.Models) != 0 || len(res.Tables()) != 0 {
		t.Errorf("expected an empty result, got %+v", res)
	}
}

func TestLoaderStoreFailure(t *testing.T) {
	inner := &flakyStore{failures: 1, err: unavailable("list", "alice", "acme", errors.New("connection reset"))}

	_, err := NewLoader(inner).Load(context.Background(), "alice", "acme")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Load() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestLoaderSkipsNonDMN(t *testing.T) {
	inner := &flakyStore{models: []StoredModel{
		{ID: "p", Type: "bpmn", XML: "<definitions/>"},
		{ID: "gone", Type: ModelTypeDMN, XML: loanRiskDMN, Deleted: true},
		{ID: "ok", Type: "DMN", XML: plainDMN},
	}}

	res, err := NewLoader(inner).Load(context.Background(), "alice", "acme")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(res.Models) != 1 || res.Models[0].ID != "ok" {
		t.Errorf("Load() kept %d models, want only ok", len(res.Models))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("skipped documents should not warn: %v", res.Warnings)
	}
}
