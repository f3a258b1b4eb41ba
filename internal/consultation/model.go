package consultation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusNeedsMoreInfo Status = "needs_more_info"
	StatusRejected      Status = "rejected"
	StatusScheduled     Status = "scheduled"
	StatusConfirmed     Status = "confirmed"
)

// AllStatuses lists every consultation-request status.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusPendingReview,
	StatusApproved,
	StatusNeedsMoreInfo,
	StatusRejected,
	StatusScheduled,
	StatusConfirmed,
}

// Request is a patient-initiated consultation request moving through
// front-desk triage before it becomes a confirmed appointment.
type Request struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      *uuid.UUID
	Reason        string
	Status        Status
	ReviewedBy    *uuid.UUID
	ReviewedAt    *time.Time
	ReviewNotes   *string
	AppointmentID *uuid.UUID
	ScheduledFor  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WithStatus returns a copy of the request in the given status.
func (r Request) WithStatus(s Status) Request {
	r.Status = s
	return r
}

// WithReview stamps the review metadata. Every front-desk review action
// passes through here.
func (r Request) WithReview(reviewerID uuid.UUID, at time.Time, notes string) Request {
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &at
	if notes != "" {
		r.ReviewNotes = &notes
	}
	return r
}

// WithAppointment links the scheduled appointment slot.
func (r Request) WithAppointment(apptID uuid.UUID, at time.Time) Request {
	r.AppointmentID = &apptID
	r.ScheduledFor = &at
	return r
}
