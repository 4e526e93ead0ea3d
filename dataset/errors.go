/*
errors.go - Centralized error types for the insight engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Downstream packages wrap these with additional context.

ERROR CATEGORIES:
  1. Source errors - the remote ERP could not be reached; callers fall back
     to the last good cached snapshot and surface a non-fatal status
  2. Schema errors - a computation's required column is missing; fatal for
     that computation and reported distinctly from "no data"
  3. Persistence errors - disk writes failed; surfaced to the caller while
     in-memory results remain usable for the current session

USAGE:
    if errors.Is(err, dataset.ErrSourceUnreachable) {
        // render "could not refresh" status, keep serving cached data
    }
*/
package dataset

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSourceUnreachable is returned when the remote ERP fetch fails.
	// Recoverable: the last cached snapshot stays in use.
	ErrSourceUnreachable = errors.New("data source unreachable")

	// ErrSchemaMissing is returned when a required column is absent from a
	// collection. Fatal for the requested computation.
	ErrSchemaMissing = errors.New("required column missing")

	// ErrPersistence is returned when cached state could not be written.
	// The in-memory result is still valid for the current session.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SchemaError identifies which column was missing from which collection.
type SchemaError struct {
	Collection string
	Want       string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no %s column found in %s data", e.Want, e.Collection)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMissing }

// IsRecoverable reports whether the caller can keep serving cached data.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSourceUnreachable) || errors.Is(err, ErrPersistence)
}
