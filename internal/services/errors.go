package services

import (
	"fmt"
)

// ValidationError rejects an import request before any row is read
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// EntityResolutionError means a manufacturer, product or supplier link could
// not be found or created for one group
type EntityResolutionError struct {
	Entity string
	Key    string
	Err    error
}

func (e *EntityResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s %q: %v", e.Entity, e.Key, e.Err)
}

func (e *EntityResolutionError) Unwrap() error { return e.Err }

// LotCreationError means the lot row for a group was rejected
type LotCreationError struct {
	ProductSupplierID string
	Err               error
}

func (e *LotCreationError) Error() string {
	return fmt.Sprintf("failed to create lot for product supplier %s: %v", e.ProductSupplierID, e.Err)
}

func (e *LotCreationError) Unwrap() error { return e.Err }

// FatalError aborts a run because the store is unreachable. SourceRows names
// the group being processed when it happened, if any.
type FatalError struct {
	Stage      string
	SourceRows []int
	Err        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("import aborted during %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
