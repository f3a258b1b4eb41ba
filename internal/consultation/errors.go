package consultation

import (
	"errors"
	"fmt"
)

var (
	ErrRequestNotFound   = errors.New("consultation request not found")
	ErrInvalidTransition = errors.New("invalid consultation request transition")
	ErrNotOwner          = errors.New("consultation request belongs to a different patient")
	ErrAppointmentClosed = errors.New("linked appointment is cancelled or completed")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("consultation request was modified concurrently")
)

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
