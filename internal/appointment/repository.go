package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// FindStalePending returns appointments still awaiting confirmation that
	// were created before cutoff.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)

	// UpdateAppointment persists the new entity value with a compare-and-swap
	// on the previous status. Returns ErrConflict when another writer moved
	// the appointment first.
	UpdateAppointment(ctx context.Context, a Appointment, from Status) (*Appointment, error)
}
