package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable marks failures to reach the decision-model store.
	// They are transient and may be retried by the caller.
	ErrStoreUnavailable = errors.New("decision model store unavailable")

	// ErrModelNotFound is returned by stores when a model ID does not exist
	ErrModelNotFound = errors.New("decision model not found")

	// ErrModelExists is returned by stores when adding a duplicate model ID
	ErrModelExists = errors.New("decision model already exists")
)

// StoreError describes a failed read or write against a model store
type StoreError struct {
	Op     string
	Owner  string
	Tenant string
	Cause  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s models for owner %q tenant %q: %v", e.Op, e.Owner, e.Tenant, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Cause}
}

func unavailable(op, owner, tenant string, cause error) error {
	return &StoreError{Op: op, Owner: owner, Tenant: tenant, Cause: cause}
}

// ParseError represents a DMN document that could not be turned into decision tables.
// It is permanent for the offending document.
type ParseError struct {
	// Document is the stored model ID or name, when known
	Document string

	// Table is the decision table or decision ID, when known
	Table string

	// Rule is the rule ID or 1-based position, when known
	Rule string

	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	parts := []string{"dmn parse error"}
	if e.Document != "" {
		parts = append(parts, fmt.Sprintf("in document %q", e.Document))
	}
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("in table %q", e.Table))
	}
	if e.Rule != "" {
		parts = append(parts, fmt.Sprintf("in rule %q", e.Rule))
	}
	msg := strings.Join(parts, " ") + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
