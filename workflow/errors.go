package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for project operations.
var (
	// ErrProjectNotFound is returned when a project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidTransition is the family sentinel wrapped by every
	// InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned by a ProjectStore when a revision-checked
	// update lost a concurrent race. The machine re-fetches once and
	// re-applies the guard before giving up.
	ErrConflict = errors.New("project modified concurrently")
)

// InvalidTransitionError reports a transition whose precondition failed,
// carrying the current and requested states. Callers must not retry
// without changing the underlying condition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError is a user-facing rejection of submitted input. Status is
// never changed when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
