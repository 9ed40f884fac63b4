package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation does not apply to the current stage.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrJobAbandoned is returned to callers whose job was reset or replaced mid-leg.
	ErrJobAbandoned = errors.New("upload job abandoned")
)

// ValidationError rejects user input without changing the stage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LegError is a network failure in a named leg. The job is now Failed.
type LegError struct {
	Leg   Leg
	Cause error
}

func (e *LegError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Leg, e.Cause)
}

func (e *LegError) Unwrap() error {
	return e.Cause
}
