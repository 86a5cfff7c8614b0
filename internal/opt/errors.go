package opt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("opt: invalid input")
	// ErrSolver is wrapped when no search run produced a usable solution.
	ErrSolver = errors.New("opt: solver failed")
)

// ValidationError describes a rejected vehicle, job or config value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("opt: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SolverError aggregates the failures of all search runs.
type SolverError struct {
	Runs int
	Errs []error
}

func (e *SolverError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("opt: all %d search runs failed: %s", e.Runs, strings.Join(msgs, "; "))
}

func (e *SolverError) Unwrap() []error {
	return append([]error{ErrSolver}, e.Errs...)
}
