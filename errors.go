package dataflow

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	// ErrAlreadyBound is returned when a variable that already reached a
	// terminal state is bound again with a different outcome, or bound again
	// at all through BindUnique.
	ErrAlreadyBound = errors.New("dataflow: variable already bound")

	// ErrPoolClosed is returned by Pool.SubmitErr when the pool has been closed.
	ErrPoolClosed = errors.New("dataflow: pool is closed")

	// ErrGuardMismatch is returned when a guard mask does not cover the
	// select's channel list.
	ErrGuardMismatch = errors.New("dataflow: guard mask length mismatch")

	// ErrNoMatch is returned by path extractors when an expression selects
	// nothing from the payload.
	ErrNoMatch = errors.New("dataflow: no path match")
)

// CompoundError aggregates the per-item failures of a parallel operation.
// Individual errors are wrapped with their item index and remain reachable
// through errors.Is / errors.As via Unwrap.
type CompoundError struct {
	Errors []error
}

// Error implements the error interface.
func (e *CompoundError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("dataflow: %d task(s) failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the aggregated errors to the errors package.
func (e *CompoundError) Unwrap() []error {
	return e.Errors
}
