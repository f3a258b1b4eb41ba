package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/consultation"
	"github.com/wardline/clinic-workflow/internal/theater"
)

// Envelope is the JSON shape of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// -- Appointments --

type ScheduleAppointmentRequest struct {
	ActorID   string  `json:"actor_id"`
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	StartTime string  `json:"start_time"` // RFC 3339
	Type      string  `json:"type,omitempty"`
	Note      *string `json:"note,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

type DoctorActionRequest struct {
	DoctorID string `json:"doctor_id"`
	Notes    string `json:"notes,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type ActorActionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID                 `json:"id"`
	PatientID    uuid.UUID                 `json:"patient_id"`
	DoctorID     uuid.UUID                 `json:"doctor_id"`
	StartTime    time.Time                 `json:"start_time"`
	Type         string                    `json:"type"`
	Status       string                    `json:"status"`
	Note         *string                   `json:"note,omitempty"`
	Reason       *string                   `json:"reason,omitempty"`
	CheckedInAt  *time.Time                `json:"checked_in_at,omitempty"`
	NoShow       bool                      `json:"no_show,omitempty"`
	NoShowReason *string                   `json:"no_show_reason,omitempty"`
	Confirmation *ConfirmationResponse     `json:"confirmation,omitempty"`
	Rejection    *RejectionResponse        `json:"rejection,omitempty"`
}

type ConfirmationResponse struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	Notes       string    `json:"notes,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type RejectionResponse struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		StartTime:    a.StartTime,
		Type:         a.Type,
		Status:       string(a.Status),
		Note:         a.Note,
		Reason:       a.Reason,
		CheckedInAt:  a.CheckedInAt,
		NoShow:       a.NoShow,
		NoShowReason: a.NoShowReason,
	}
	if a.Confirmation != nil {
		resp.Confirmation = &ConfirmationResponse{
			DoctorID:    a.Confirmation.DoctorID,
			Notes:       a.Confirmation.Notes,
			ConfirmedAt: a.Confirmation.ConfirmedAt,
		}
	}
	if a.Rejection != nil {
		resp.Rejection = &RejectionResponse{
			DoctorID:   a.Rejection.DoctorID,
			Reason:     a.Rejection.Reason,
			RejectedAt: a.Rejection.RejectedAt,
		}
	}
	return resp
}

// -- Consultation requests --

type SubmitConsultationRequest struct {
	PatientID string  `json:"patient_id"`
	DoctorID  *string `json:"doctor_id,omitempty"`
	Reason    string  `json:"reason"`
}

type ReviewActionRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes,omitempty"`
}

type ScheduleConsultationRequest struct {
	ReviewerID string `json:"reviewer_id"`
	DoctorID   string `json:"doctor_id"`
	StartTime  string `json:"start_time"` // RFC 3339
}

type PatientActionRequest struct {
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason,omitempty"`
}

type ConsultationResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	ReviewedBy    *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes   *string    `json:"review_notes,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
}

func toConsultationResponse(r *consultation.Request) ConsultationResponse {
	return ConsultationResponse{
		ID:            r.ID,
		PatientID:     r.PatientID,
		DoctorID:      r.DoctorID,
		Reason:        r.Reason,
		Status:        string(r.Status),
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    r.ReviewedAt,
		ReviewNotes:   r.ReviewNotes,
		AppointmentID: r.AppointmentID,
		ScheduledFor:  r.ScheduledFor,
	}
}

// -- Theater bookings --

type HoldBookingRequest struct {
	ActorID   string `json:"actor_id"`
	CaseID    string `json:"case_id"`
	TheaterID string `json:"theater_id"`
	StartTime string `json:"start_time"` // RFC 3339
	EndTime   string `json:"end_time"`   // RFC 3339
}

type BookingResponse struct {
	ID            uuid.UUID `json:"id"`
	CaseID        uuid.UUID `json:"case_id"`
	TheaterID     uuid.UUID `json:"theater_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	LockExpiresAt time.Time `json:"lock_expires_at"`
}

func toBookingResponse(b *theater.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		CaseID:        b.CaseID,
		TheaterID:     b.TheaterID,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Status:        string(b.Status),
		LockExpiresAt: b.LockExpiresAt,
	}
}
