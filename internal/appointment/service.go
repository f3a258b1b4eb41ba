package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
	"github.com/wardline/clinic-workflow/internal/notify"
)

const (
	ActionSchedule          = "SCHEDULE"
	ActionConfirm           = "CONFIRM"
	ActionReject            = "REJECT"
	ActionCheckIn           = "CHECK_IN"
	ActionMarkReady         = "MARK_READY"
	ActionStartConsultation = "START_CONSULTATION"
	ActionComplete          = "COMPLETE"
	ActionNoShow            = "NO_SHOW"
	ActionCancel            = "CANCEL"
	ActionExpire            = "EXPIRE"
)

const (
	maxNoteLen   = 1000
	maxReasonLen = 500
)

type Service struct {
	repo    Repository
	mailer  notify.Mailer
	auditor audit.Recorder
	clock   clock.Clock
	logger  zerolog.Logger
}

func NewService(repo Repository, mailer notify.Mailer, auditor audit.Recorder, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		mailer:  mailer,
		auditor: auditor,
		clock:   clk,
		logger:  logger,
	}
}

type ScheduleInput struct {
	ActorID   uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	Type      string
	Note      *string
	Reason    *string
}

// Schedule creates a new appointment awaiting doctor confirmation.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (*Appointment, error) {
	if in.StartTime.IsZero() {
		return nil, &ValidationError{Field: "start_time", Detail: "is required"}
	}
	if in.Type == "" {
		in.Type = "consultation"
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	doctor, err := s.repo.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	created, err := s.repo.CreateAppointment(ctx, Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		StartTime: in.StartTime,
		Type:      in.Type,
		Status:    StatusPendingDoctorConfirmation,
		Note:      in.Note,
		Reason:    in.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.recordAudit(ctx, in.ActorID, created.ID, ActionSchedule,
		fmt.Sprintf("appointment scheduled for %s", in.StartTime.Format(time.RFC3339)))
	s.emailDoctor(ctx, doctor, "Appointment awaiting confirmation",
		fmt.Sprintf("A new appointment on %s is awaiting your confirmation.", in.StartTime.Format(time.RFC1123)))

	return created, nil
}

// Confirm is the doctor accepting an appointment that is pending their
// confirmation. The appointment moves to scheduled.
func (s *Service) Confirm(ctx context.Context, apptID, doctorID uuid.UUID, notes string) (*Appointment, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > maxNoteLen {
		return nil, &ValidationError{Field: "notes", Detail: fmt.Sprintf("must be at most %d characters", maxNoteLen)}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	next, err := Transition(appt.Status, EventDoctorConfirm)
	if err != nil {
		return nil, err
	}

	confirmation := DoctorConfirmation{
		DoctorID:    doctorID,
		Notes:       notes,
		ConfirmedAt: s.clock.Now(),
	}

	updated, err := s.repo.UpdateAppointment(ctx, appt.WithStatus(next).WithConfirmation(confirmation), appt.Status)
	if err != nil {
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.emailPatient(ctx, updated.PatientID, "Appointment confirmed",
		fmt.Sprintf("Your appointment on %s has been confirmed by your doctor.", updated.StartTime.Format(time.RFC1123)))
	s.recordAudit(ctx, doctorID, updated.ID, ActionConfirm,
		fmt.Sprintf("doctor confirmed; notes=%q", notes))

	return updated, nil
}

// Reject is the doctor declining an appointment pending their confirmation.
// A non-blank reason is required and the appointment moves to cancelled.
func (s *Service) Reject(ctx context.Context, apptID, doctorID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Detail: "is required"}
	}
	if len(reason) > maxReasonLen {
		return nil, &ValidationError{Field: "reason", Detail: fmt.Sprintf("must be at most %d characters", maxReasonLen)}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	next, err := Transition(appt.Status, EventDoctorReject)
	if err != nil {
		return nil, err
	}

	rejection := AppointmentRejection{
		DoctorID:   doctorID,
		Reason:     reason,
		RejectedAt: s.clock.Now(),
	}

	updated, err := s.repo.UpdateAppointment(ctx, appt.WithStatus(next).WithRejection(rejection), appt.Status)
	if err != nil {
		return nil, fmt.Errorf("reject appointment: %w", err)
	}

	s.emailPatient(ctx, updated.PatientID, "Appointment could not be confirmed",
		fmt.Sprintf("Your appointment on %s was declined: %s", updated.StartTime.Format(time.RFC1123), reason))
	s.recordAudit(ctx, doctorID, updated.ID, ActionReject,
		fmt.Sprintf("doctor rejected; reason=%q", reason))

	return updated, nil
}

// CheckIn marks the patient as arrived at the front desk.
func (s *Service) CheckIn(ctx context.Context, apptID, actorID uuid.UUID) (*Appointment, error) {
	return s.advance(ctx, apptID, actorID, EventCheckIn, ActionCheckIn, func(a Appointment) Appointment {
		return a.WithCheckIn(s.clock.Now())
	})
}

// MarkReady moves a checked-in patient to ready for consultation.
func (s *Service) MarkReady(ctx context.Context, apptID, actorID uuid.UUID) (*Appointment, error) {
	return s.advance(ctx, apptID, actorID, EventMarkReady, ActionMarkReady, nil)
}

// StartConsultation begins the consultation.
func (s *Service) StartConsultation(ctx context.Context, apptID, actorID uuid.UUID) (*Appointment, error) {
	return s.advance(ctx, apptID, actorID, EventStartConsultation, ActionStartConsultation, nil)
}

// Complete finishes an in-progress consultation.
func (s *Service) Complete(ctx context.Context, apptID, actorID uuid.UUID) (*Appointment, error) {
	return s.advance(ctx, apptID, actorID, EventComplete, ActionComplete, nil)
}

// MarkNoShow cancels a scheduled appointment because the patient did not
// arrive. The reason is kept on the record.
func (s *Service) MarkNoShow(ctx context.Context, apptID, actorID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Detail: "is required"}
	}
	if len(reason) > maxReasonLen {
		return nil, &ValidationError{Field: "reason", Detail: fmt.Sprintf("must be at most %d characters", maxReasonLen)}
	}

	return s.advance(ctx, apptID, actorID, EventNoShow, ActionNoShow, func(a Appointment) Appointment {
		return a.WithNoShow(reason)
	})
}

// Cancel cancels an appointment from any non-terminal pre-consultation state.
func (s *Service) Cancel(ctx context.Context, apptID, actorID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)

	updated, err := s.advance(ctx, apptID, actorID, EventCancel, ActionCancel, func(a Appointment) Appointment {
		if reason != "" {
			a.Reason = &reason
		}
		return a
	})
	if err != nil {
		return nil, err
	}

	s.emailPatient(ctx, updated.PatientID, "Appointment cancelled",
		fmt.Sprintf("Your appointment on %s has been cancelled.", updated.StartTime.Format(time.RFC1123)))

	return updated, nil
}

// advance runs the shared orchestration: load, validate transition, apply
// mutation, CAS persist, audit. Notification, when wanted, is layered on by
// the caller after persistence.
func (s *Service) advance(ctx context.Context, apptID, actorID uuid.UUID, ev Event, action string, mutate func(Appointment) Appointment) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	next, err := Transition(appt.Status, ev)
	if err != nil {
		return nil, err
	}

	entity := appt.WithStatus(next)
	if mutate != nil {
		entity = mutate(entity)
	}

	updated, err := s.repo.UpdateAppointment(ctx, entity, appt.Status)
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", ev, err)
	}

	s.recordAudit(ctx, actorID, updated.ID, action,
		fmt.Sprintf("status %s -> %s", appt.Status, updated.Status))

	return updated, nil
}

// ExpireStale cancels appointments that sat unconfirmed past ttl. The expiry
// worker calls this on a schedule; a stale appointment still holds a doctor's
// slot, so it is cancelled through the normal lifecycle rather than deleted.
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-ttl)
	stale, err := s.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	reason := "not confirmed in time"
	expired := 0
	for _, appt := range stale {
		next, err := Transition(appt.Status, EventCancel)
		if err != nil {
			continue
		}

		entity := appt.WithStatus(next)
		entity.Reason = &reason

		if _, err := s.repo.UpdateAppointment(ctx, entity, appt.Status); err != nil {
			// Lost the race to another writer, nothing to do.
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.logger.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("failed to expire appointment")
			continue
		}
		expired++
		s.recordAudit(ctx, uuid.Nil, appt.ID, ActionExpire,
			fmt.Sprintf("cancelled after %s without confirmation", ttl))
	}

	return expired, nil
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListByPatient retrieves appointments for a specific patient.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, recordID uuid.UUID, action, details string) {
	ev := audit.Event{
		ActorID:   actorID,
		RecordID:  recordID,
		Action:    action,
		Model:     audit.ModelAppointment,
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
	patient, err := s.repo.GetPatientByID(ctx, patientID)
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

func (s *Service) emailDoctor(ctx context.Context, doctor *Doctor, subject, body string) {
	if doctor == nil || doctor.Email == nil {
		return
	}
	if err := s.mailer.SendEmail(ctx, *doctor.Email, subject, body); err != nil {
		s.logger.Warn().Err(err).Stringer("doctor_id", doctor.ID).Msg("doctor notification failed")
	}
}
