package theater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
	"github.com/wardline/clinic-workflow/internal/notify"
	redisclient "github.com/wardline/clinic-workflow/internal/redis"
)

const (
	ActionHold    = "HOLD"
	ActionConfirm = "CONFIRM"
	ActionRelease = "RELEASE"
	ActionExpire  = "EXPIRE"
)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	mailer  notify.Mailer
	auditor audit.Recorder
	clock   clock.Clock
	logger  zerolog.Logger
	holdTTL time.Duration
}

func NewService(repo Repository, locker redisclient.Locker, mailer notify.Mailer, auditor audit.Recorder, clk clock.Clock, logger zerolog.Logger, holdTTL time.Duration) *Service {
	if holdTTL <= 0 {
		holdTTL = 5 * time.Minute
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		mailer:  mailer,
		auditor: auditor,
		clock:   clk,
		logger:  logger,
		holdTTL: holdTTL,
	}
}

// Hold places a provisional booking on a theater time range. A distributed
// per-theater lock serialises concurrent hold attempts for the same theater;
// inside the critical section the range is re-checked against live bookings,
// lazily reclaiming any overlapping hold whose TTL has already passed.
func (s *Service) Hold(ctx context.Context, actorID, caseID, theaterID uuid.UUID, start, end time.Time) (*Booking, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &ValidationError{Field: "time_range", Detail: "start and end are required"}
	}
	if !start.Before(end) {
		return nil, &ValidationError{Field: "time_range", Detail: "start must be before end"}
	}

	if _, err := s.repo.GetTheaterByID(ctx, theaterID); err != nil {
		return nil, err
	}

	var created *Booking

	err := s.locker.WithResourceLock(ctx, redisclient.TheaterKey(theaterID), func(lockCtx context.Context) error {
		now := s.clock.Now()

		overlapping, err := s.repo.FindOverlapping(lockCtx, theaterID, start, end)
		if err != nil {
			return fmt.Errorf("check overlapping bookings: %w", err)
		}

		for _, existing := range overlapping {
			if !existing.HoldExpired(now) {
				return ErrSlotUnavailable
			}
			// Abandoned hold past its TTL: reclaim it now rather than wait
			// for the sweeper.
			if _, err := s.repo.UpdateStatus(lockCtx, existing.ID, StatusProvisional, StatusExpired); err != nil {
				if errors.Is(err, ErrBookingNotFound) {
					continue
				}
				return fmt.Errorf("reclaim expired hold %s: %w", existing.ID, err)
			}
			s.recordAudit(lockCtx, actorID, existing.ID, ActionExpire, "reclaimed at contention time")
		}

		booking, err := s.repo.CreateProvisional(lockCtx, Booking{
			CaseID:        caseID,
			TheaterID:     theaterID,
			StartTime:     start,
			EndTime:       end,
			LockExpiresAt: now.Add(s.holdTTL),
		})
		if err != nil {
			return fmt.Errorf("create provisional booking: %w", err)
		}

		created = booking
		s.recordAudit(lockCtx, actorID, booking.ID, ActionHold,
			fmt.Sprintf("provisional hold until %s", booking.LockExpiresAt.Format(time.RFC3339)))

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrTheaterBusy
		}
		return nil, err
	}

	return created, nil
}

// Confirm promotes a provisional hold to a confirmed booking. The persisted
// lock_expires_at is authoritative: a hold past its TTL is rejected even if
// the row still reads provisional, and is flipped to expired on the way out.
func (s *Service) Confirm(ctx context.Context, actorID, bookingID uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if booking.Status == StatusExpired {
		return nil, ErrHoldExpired
	}

	if booking.HoldExpired(now) {
		if _, updErr := s.repo.UpdateStatus(ctx, booking.ID, StatusProvisional, StatusExpired); updErr != nil && !errors.Is(updErr, ErrBookingNotFound) {
			s.logger.Warn().Err(updErr).Stringer("booking_id", booking.ID).Msg("failed to mark booking expired during confirm")
		}
		s.recordAudit(ctx, actorID, booking.ID, ActionExpire, "confirm attempted after expiry")
		return nil, ErrHoldExpired
	}

	if booking.Status != StatusProvisional {
		return nil, &TransitionError{Current: booking.Status, Action: "confirm"}
	}

	updated, err := s.repo.UpdateStatus(ctx, booking.ID, StatusProvisional, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.recordAudit(ctx, actorID, updated.ID, ActionConfirm, "provisional hold confirmed")
	s.notifyCoordinator(ctx, updated, "Theater booking confirmed",
		fmt.Sprintf("Booking %s confirmed for %s to %s.", updated.ID,
			updated.StartTime.Format(time.RFC1123), updated.EndTime.Format(time.RFC1123)))

	return updated, nil
}

// Release abandons a provisional hold explicitly, freeing the slot without
// waiting for the TTL.
func (s *Service) Release(ctx context.Context, actorID, bookingID uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != StatusProvisional {
		return nil, &TransitionError{Current: booking.Status, Action: "release"}
	}

	updated, err := s.repo.UpdateStatus(ctx, booking.ID, StatusProvisional, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("release booking: %w", err)
	}

	s.recordAudit(ctx, actorID, updated.ID, ActionRelease, "provisional hold released")

	return updated, nil
}

// ExpireOverdue flips every provisional hold past its TTL to expired. The
// expiry worker calls this on a schedule; Hold also reclaims lazily so a
// stalled worker never blocks rebooking.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	overdue, err := s.repo.FindOverdueProvisional(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find overdue holds: %w", err)
	}

	expired := 0
	for _, booking := range overdue {
		if _, err := s.repo.UpdateStatus(ctx, booking.ID, StatusProvisional, StatusExpired); err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				continue
			}
			s.logger.Error().Err(err).Stringer("booking_id", booking.ID).Msg("failed to expire hold")
			continue
		}
		expired++
		s.recordAudit(ctx, uuid.Nil, booking.ID, ActionExpire, "expired by sweeper")
	}

	return expired, nil
}

// Get retrieves a booking by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

// ListByTheater retrieves bookings for a theater within a window.
func (s *Service) ListByTheater(ctx context.Context, theaterID uuid.UUID, from, to time.Time) ([]Booking, error) {
	if to.IsZero() {
		to = s.clock.Now().AddDate(0, 1, 0)
	}
	if from.IsZero() {
		from = s.clock.Now().AddDate(0, -1, 0)
	}
	return s.repo.ListByTheater(ctx, theaterID, from, to)
}

func (s *Service) recordAudit(ctx context.Context, actorID, recordID uuid.UUID, action, details string) {
	ev := audit.Event{
		ActorID:   actorID,
		RecordID:  recordID,
		Action:    action,
		Model:     audit.ModelTheaterBooking,
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

func (s *Service) notifyCoordinator(ctx context.Context, booking *Booking, subject, body string) {
	theater, err := s.repo.GetTheaterByID(ctx, booking.TheaterID)
	if err != nil || theater.CoordEmail == nil {
		return
	}
	if err := s.mailer.SendEmail(ctx, *theater.CoordEmail, subject, body); err != nil {
		s.logger.Warn().Err(err).Stringer("theater_id", booking.TheaterID).Msg("coordinator notification failed")
	}
}
