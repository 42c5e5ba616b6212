package multitenantengine

import (
	"errors"
	"fmt"
	"time"
)

// ErrScopeNotFound is returned when an owner/tenant scope has never been loaded
var ErrScopeNotFound = errors.New("rule scope not found")

// StaleSnapshotError reports a failed reload while an older snapshot keeps serving queries
type StaleSnapshotError struct {
	Tenant   string
	Owner    string
	LoadedAt time.Time
	Cause    error
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("reload of %s/%s failed, serving snapshot loaded at %s: %v",
		e.Tenant, e.Owner, e.LoadedAt.Format(time.RFC3339), e.Cause)
}

func (e *StaleSnapshotError) Unwrap() error {
	return e.Cause
}
