package agent

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrAlreadyRunning = errors.New("automation loop already running")
	ErrNotRunning     = errors.New("automation loop not running")
	ErrExecution      = errors.New("execution failure")
	ErrIterationFault = errors.New("iteration fault")
)

// ValidationError rejects a start request before any loop is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IterationFault is anything that escaped one iteration, panics included.
type IterationFault struct {
	Step  int
	Cause error
	Stack []byte
}

func (f *IterationFault) Error() string {
	return fmt.Sprintf("iteration %d: %v", f.Step, f.Cause)
}

func (f *IterationFault) Unwrap() []error {
	return []error{ErrIterationFault, f.Cause}
}
