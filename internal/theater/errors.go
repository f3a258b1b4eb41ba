package theater

import (
	"errors"
	"fmt"
)

var (
	ErrTheaterNotFound   = errors.New("theater not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrHoldExpired       = errors.New("provisional hold has expired")
	ErrSlotUnavailable   = errors.New("theater already booked for that time range")
	ErrTheaterBusy       = errors.New("theater is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrValidation        = errors.New("validation failed")
)

// TransitionError reports an action attempted against a booking in the
// wrong state. Matches ErrInvalidTransition under errors.Is.
type TransitionError struct {
	Current Status
	Action  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: booking is %s", e.Action, e.Current)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError reports caller input that violates a field constraint.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
