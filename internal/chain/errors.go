package chain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failed check reverts the enclosing batch with a
// *RevertError wrapping one of these.
var (
	ErrAuthorization      = errors.New("authorization error")
	ErrState              = errors.New("state error")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInsufficientAmount = errors.New("insufficient amount")
	ErrPaused             = errors.New("paused")
)

// RevertError describes the check that aborted a batch.
type RevertError struct {
	Kind      error
	Component string
	Reason    string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Reason)
}

func (e *RevertError) Unwrap() error {
	return e.Kind
}

// Revert builds a *RevertError of the given kind.
func Revert(kind error, component, format string, args ...any) error {
	return &RevertError{
		Kind:      kind,
		Component: component,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// Require returns a revert when cond is false, nil otherwise.
func Require(cond bool, kind error, component, format string, args ...any) error {
	if cond {
		return nil
	}
	return Revert(kind, component, format, args...)
}
