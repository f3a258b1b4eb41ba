package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending                   Status = "pending"
	StatusPendingDoctorConfirmation Status = "pending_doctor_confirmation"
	StatusScheduled                 Status = "scheduled"
	StatusCheckedIn                 Status = "checked_in"
	StatusReadyForConsultation      Status = "ready_for_consultation"
	StatusInConsultation            Status = "in_consultation"
	StatusCompleted                 Status = "completed"
	StatusCancelled                 Status = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AllStatuses lists every appointment status, useful for exhaustive
// transition tests.
var AllStatuses = []Status{
	StatusPending,
	StatusPendingDoctorConfirmation,
	StatusScheduled,
	StatusCheckedIn,
	StatusReadyForConsultation,
	StatusInConsultation,
	StatusCompleted,
	StatusCancelled,
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DoctorConfirmation captures who confirmed an appointment, when, and any
// notes. It is built once at transition time and never mutated.
type DoctorConfirmation struct {
	DoctorID    uuid.UUID
	Notes       string
	ConfirmedAt time.Time
}

// AppointmentRejection captures who rejected an appointment, when, and why.
type AppointmentRejection struct {
	DoctorID   uuid.UUID
	Reason     string
	RejectedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	StartTime    time.Time
	Type         string
	Status       Status
	Note         *string
	Reason       *string
	CheckedInAt  *time.Time
	NoShow       bool
	NoShowReason *string
	Confirmation *DoctorConfirmation
	Rejection    *AppointmentRejection
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WithStatus returns a copy of the appointment in the given status. Entity
// mutations always go through value-returning methods so the loaded entity
// stays untouched until the repository persists the new value.
func (a Appointment) WithStatus(s Status) Appointment {
	a.Status = s
	return a
}

// WithConfirmation attaches a doctor confirmation.
func (a Appointment) WithConfirmation(c DoctorConfirmation) Appointment {
	a.Confirmation = &c
	return a
}

// WithRejection attaches a doctor rejection.
func (a Appointment) WithRejection(r AppointmentRejection) Appointment {
	a.Rejection = &r
	return a
}

// WithCheckIn stamps the check-in time.
func (a Appointment) WithCheckIn(at time.Time) Appointment {
	a.CheckedInAt = &at
	return a
}

// WithNoShow flags the appointment as a no-show with the given reason.
func (a Appointment) WithNoShow(reason string) Appointment {
	a.NoShow = true
	a.NoShowReason = &reason
	return a
}
