package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrOrganizationNotEligible = errors.New("organization not eligible")
	ErrAlreadyMatched          = errors.New("already matched")
	ErrDuplicateOperation      = errors.New("duplicate operation")
	ErrInvalidInput            = errors.New("invalid input")
	// ErrStaleState is returned by conditional updates whose expected current
	// status no longer holds.
	ErrStaleState = errors.New("stale state")
)

// TransitionError describes an event that is not allowed from the entity's
// current status.
type TransitionError struct {
	Entity EntityKind
	ID     string
	From   string
	Event  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s from %s: %s", e.Entity, e.ID, e.Event, e.From, ErrInvalidStateTransition)
}

// Is makes errors.Is(err, ErrInvalidStateTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
