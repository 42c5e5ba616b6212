package multitenantengine

import (
	"fmt"
	"regexp"

	"github.com/processgpt/dmnrules/rules"
)

// Limits applied to every decision table before it enters a snapshot
const (
	MaxInputs  = 100
	MaxOutputs = 100
	MaxRules   = 10000
)

var scopeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.@-]*$`)

// ValidateScope checks an owner or tenant ID before it is used as a map key or a directory name
func ValidateScope(owner, tenant string) error {
	if err := validateScopeID(tenant); err != nil {
		return fmt.Errorf("invalid tenant %q: %w", tenant, err)
	}
	if err := validateScopeID(owner); err != nil {
		return fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	return nil
}

// validateScopeID requires 1-100 characters, no path separators and no dot-only names
func validateScopeID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(id))
	}
	if !scopeIDPattern.MatchString(id) {
		return fmt.Errorf("must match pattern %s", scopeIDPattern.String())
	}
	return nil
}

// ValidateTable checks a parsed decision table against size limits.
// Repeated input expressions are allowed so a band can be written as two columns on the same name,
// and typeRefs are opaque because they may name an itemDefinition.
func ValidateTable(t *rules.DecisionTable) error {
	if len(t.Inputs) == 0 && len(t.Outputs) == 0 {
		return fmt.Errorf("table %q has neither inputs nor outputs", t.ID)
	}

	if len(t.Inputs) > MaxInputs {
		return fmt.Errorf("table %q has %d inputs, maximum allowed is %d", t.ID, len(t.Inputs), MaxInputs)
	}
	if len(t.Outputs) > MaxOutputs {
		return fmt.Errorf("table %q has %d outputs, maximum allowed is %d", t.ID, len(t.Outputs), MaxOutputs)
	}
	if len(t.Rules) > MaxRules {
		return fmt.Errorf("table %q has %d rules, maximum allowed is %d", t.ID, len(t.Rules), MaxRules)
	}

	for i, in := range t.Inputs {
		if in.Name() == "" {
			return fmt.Errorf("input %d of table %q has neither label nor expression", i+1, t.ID)
		}
	}

	return nil
}
