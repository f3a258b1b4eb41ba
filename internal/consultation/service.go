package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
	"github.com/wardline/clinic-workflow/internal/notify"
)

const (
	ActionSubmit         = "SUBMIT"
	ActionStartReview    = "START_REVIEW"
	ActionApprove        = "APPROVE"
	ActionRequestInfo    = "REQUEST_INFO"
	ActionReject         = "REJECT"
	ActionSchedule       = "SCHEDULE"
	ActionPatientConfirm = "PATIENT_CONFIRM"
	ActionResubmit       = "RESUBMIT"
)

const maxNotesLen = 1000

type Service struct {
	repo     Repository
	apptRepo appointment.Repository
	mailer   notify.Mailer
	auditor  audit.Recorder
	clock    clock.Clock
	logger   zerolog.Logger
}

func NewService(repo Repository, apptRepo appointment.Repository, mailer notify.Mailer, auditor audit.Recorder, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		apptRepo: apptRepo,
		mailer:   mailer,
		auditor:  auditor,
		clock:    clk,
		logger:   logger,
	}
}

// Submit files a new consultation request on behalf of a patient.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID, reason string) (*Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Detail: "is required"}
	}
	if len(reason) > maxNotesLen {
		return nil, &ValidationError{Field: "reason", Detail: fmt.Sprintf("must be at most %d characters", maxNotesLen)}
	}

	if _, err := s.apptRepo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, Request{
		PatientID: patientID,
		DoctorID:  doctorID,
		Reason:    reason,
		Status:    StatusSubmitted,
	})
	if err != nil {
		return nil, fmt.Errorf("create consultation request: %w", err)
	}

	s.recordAudit(ctx, patientID, created.ID, ActionSubmit, "consultation request submitted")

	return created, nil
}

// StartReview moves a submitted request into front-desk review.
func (s *Service) StartReview(ctx context.Context, id, reviewerID uuid.UUID) (*Request, error) {
	return s.review(ctx, id, reviewerID, StatusPendingReview, "", ActionStartReview)
}

// Approve accepts a request under review.
func (s *Service) Approve(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*Request, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > maxNotesLen {
		return nil, &ValidationError{Field: "notes", Detail: fmt.Sprintf("must be at most %d characters", maxNotesLen)}
	}

	updated, err := s.review(ctx, id, reviewerID, StatusApproved, notes, ActionApprove)
	if err != nil {
		return nil, err
	}

	s.emailPatient(ctx, updated.PatientID, "Consultation request approved",
		"Your consultation request has been approved. The front desk will schedule a slot for you shortly.")

	return updated, nil
}

// RequestMoreInfo sends a request back to the patient for clarification.
func (s *Service) RequestMoreInfo(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*Request, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, &ValidationError{Field: "notes", Detail: "is required when requesting more information"}
	}
	if len(notes) > maxNotesLen {
		return nil, &ValidationError{Field: "notes", Detail: fmt.Sprintf("must be at most %d characters", maxNotesLen)}
	}

	updated, err := s.review(ctx, id, reviewerID, StatusNeedsMoreInfo, notes, ActionRequestInfo)
	if err != nil {
		return nil, err
	}

	s.emailPatient(ctx, updated.PatientID, "More information needed",
		fmt.Sprintf("The front desk needs more information about your consultation request: %s", notes))

	return updated, nil
}

// Reject declines a request under review. A non-blank reason is required.
func (s *Service) Reject(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*Request, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, &ValidationError{Field: "notes", Detail: "is required when rejecting"}
	}
	if len(notes) > maxNotesLen {
		return nil, &ValidationError{Field: "notes", Detail: fmt.Sprintf("must be at most %d characters", maxNotesLen)}
	}

	updated, err := s.review(ctx, id, reviewerID, StatusRejected, notes, ActionReject)
	if err != nil {
		return nil, err
	}

	s.emailPatient(ctx, updated.PatientID, "Consultation request declined",
		fmt.Sprintf("Your consultation request was declined: %s", notes))

	return updated, nil
}

// Schedule attaches a concrete slot to an approved request, creating the
// underlying appointment in the scheduled state.
func (s *Service) Schedule(ctx context.Context, id, reviewerID, doctorID uuid.UUID, startTime time.Time) (*Request, error) {
	if startTime.IsZero() {
		return nil, &ValidationError{Field: "start_time", Detail: "is required"}
	}

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(req.Status, StatusScheduled); err != nil {
		return nil, err
	}

	appt, err := s.apptRepo.CreateAppointment(ctx, appointment.Appointment{
		PatientID: req.PatientID,
		DoctorID:  doctorID,
		StartTime: startTime,
		Type:      "consultation",
		Status:    appointment.StatusScheduled,
		Reason:    &req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("create linked appointment: %w", err)
	}

	entity := req.WithStatus(StatusScheduled).
		WithReview(reviewerID, s.clock.Now(), "").
		WithAppointment(appt.ID, startTime)

	updated, err := s.repo.Update(ctx, entity, req.Status)
	if err != nil {
		return nil, fmt.Errorf("schedule consultation request: %w", err)
	}

	s.emailPatient(ctx, updated.PatientID, "Consultation scheduled",
		fmt.Sprintf("Your consultation has been scheduled for %s. Please confirm the slot.", startTime.Format(time.RFC1123)))
	s.recordAudit(ctx, reviewerID, updated.ID, ActionSchedule,
		fmt.Sprintf("scheduled for %s, appointment %s", startTime.Format(time.RFC3339), appt.ID))

	return updated, nil
}

// PatientConfirm is the patient accepting the scheduled slot. Only the
// owning patient may confirm, and the linked appointment must still be live.
func (s *Service) PatientConfirm(ctx context.Context, id, patientID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PatientID != patientID {
		return nil, ErrNotOwner
	}

	if req.AppointmentID != nil {
		appt, err := s.apptRepo.GetAppointmentByID(ctx, *req.AppointmentID)
		if err != nil && !errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, fmt.Errorf("load linked appointment: %w", err)
		}
		if appt != nil && appt.Status.Terminal() {
			return nil, ErrAppointmentClosed
		}
	}

	if err := checkTransition(req.Status, StatusConfirmed); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, req.WithStatus(StatusConfirmed), req.Status)
	if err != nil {
		return nil, fmt.Errorf("confirm consultation request: %w", err)
	}

	s.notifyReviewer(ctx, updated, "Consultation confirmed by patient",
		fmt.Sprintf("Consultation request %s was confirmed by the patient.", updated.ID))
	s.recordAudit(ctx, patientID, updated.ID, ActionPatientConfirm, "patient confirmed scheduled slot")

	return updated, nil
}

// Resubmit returns a needs-more-info request to the submitted state once the
// patient has supplied the missing details.
func (s *Service) Resubmit(ctx context.Context, id, patientID uuid.UUID, reason string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PatientID != patientID {
		return nil, ErrNotOwner
	}
	if err := checkTransition(req.Status, StatusSubmitted); err != nil {
		return nil, err
	}

	entity := req.WithStatus(StatusSubmitted)
	if reason = strings.TrimSpace(reason); reason != "" {
		if len(reason) > maxNotesLen {
			return nil, &ValidationError{Field: "reason", Detail: fmt.Sprintf("must be at most %d characters", maxNotesLen)}
		}
		entity.Reason = reason
	}

	updated, err := s.repo.Update(ctx, entity, req.Status)
	if err != nil {
		return nil, fmt.Errorf("resubmit consultation request: %w", err)
	}

	s.recordAudit(ctx, patientID, updated.ID, ActionResubmit, "request resubmitted with updated details")

	return updated, nil
}

// Get retrieves a request by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient retrieves a patient's requests.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Request, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListByStatus retrieves requests in a given status, oldest first, for the
// front-desk review queue.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// review runs the shared front-desk orchestration: load, validate the move,
// stamp review metadata, CAS persist, audit.
func (s *Service) review(ctx context.Context, id, reviewerID uuid.UUID, to Status, notes, action string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(req.Status, to); err != nil {
		return nil, err
	}

	entity := req.WithStatus(to).WithReview(reviewerID, s.clock.Now(), notes)

	updated, err := s.repo.Update(ctx, entity, req.Status)
	if err != nil {
		return nil, fmt.Errorf("apply review action %s: %w", action, err)
	}

	s.recordAudit(ctx, reviewerID, updated.ID, action,
		fmt.Sprintf("status %s -> %s; notes=%q", req.Status, updated.Status, notes))

	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, recordID uuid.UUID, action, details string) {
	ev := audit.Event{
		ActorID:   actorID,
		RecordID:  recordID,
		Action:    action,
		Model:     audit.ModelConsultationRequest,
		Details:   details,
		CreatedAt: s.clock.Now(),
	}
	if err := s.auditor.Record(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("action", action).
			Stringer("record_id", recordID).
			Msg("failed to record audit event")
	}
}

func (s *Service) emailPatient(ctx context.Context, patientID uuid.UUID, subject, body string) {
	patient, err := s.apptRepo.GetPatientByID(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Stringer("patient_id", patientID).Msg("skipping notification, patient lookup failed")
		return
	}
	if patient.Email == nil {
		return
	}
	if err := s.mailer.SendEmail(ctx, *patient.Email, subject, body); err != nil {
		s.logger.Warn().Err(err).Stringer("patient_id", patientID).Msg("patient notification failed")
	}
}

// notifyReviewer emails whoever last reviewed the request, falling back to
// silence when the reviewer has no address on file.
func (s *Service) notifyReviewer(ctx context.Context, req *Request, subject, body string) {
	if req.ReviewedBy == nil {
		return
	}
	reviewer, err := s.apptRepo.GetDoctorByID(ctx, *req.ReviewedBy)
	if err != nil || reviewer.Email == nil {
		return
	}
	if err := s.mailer.SendEmail(ctx, *reviewer.Email, subject, body); err != nil {
		s.logger.Warn().Err(err).Stringer("reviewer_id", *req.ReviewedBy).Msg("reviewer notification failed")
	}
}
