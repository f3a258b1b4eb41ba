package theater

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
	redisclient "github.com/wardline/clinic-workflow/internal/redis"
)

type fakeRepo struct {
	theaters map[uuid.UUID]*Theater
	bookings map[uuid.UUID]*Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		theaters: make(map[uuid.UUID]*Theater),
		bookings: make(map[uuid.UUID]*Booking),
	}
}

func (f *fakeRepo) GetTheaterByID(_ context.Context, id uuid.UUID) (*Theater, error) {
	t, ok := f.theaters[id]
	if !ok {
		return nil, ErrTheaterNotFound
	}
	return t, nil
}

func (f *fakeRepo) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) ListByTheater(_ context.Context, theaterID uuid.UUID, from, to time.Time) ([]Booking, error) {
	var result []Booking
	for _, b := range f.bookings {
		if b.TheaterID == theaterID && b.Overlaps(from, to) {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (f *fakeRepo) FindOverlapping(_ context.Context, theaterID uuid.UUID, start, end time.Time) ([]Booking, error) {
	var result []Booking
	for _, b := range f.bookings {
		if b.TheaterID != theaterID {
			continue
		}
		if b.Status != StatusProvisional && b.Status != StatusConfirmed {
			continue
		}
		if b.Overlaps(start, end) {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (f *fakeRepo) CreateProvisional(_ context.Context, b Booking) (*Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = StatusProvisional
	f.bookings[b.ID] = &b
	cp := b
	return &cp, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) FindOverdueProvisional(_ context.Context, now time.Time) ([]Booking, error) {
	var result []Booking
	for _, b := range f.bookings {
		if b.Status == StatusProvisional && b.LockExpiresAt.Before(now) {
			result = append(result, *b)
		}
	}
	return result, nil
}

// fakeLocker runs the critical section inline, optionally simulating a lost
// lock race.
type fakeLocker struct {
	busy  bool
	calls int
}

func (f *fakeLocker) WithResourceLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	f.calls++
	if f.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type sentMail struct {
	To, Subject string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) SendEmail(_ context.Context, to, subject, _ string) error {
	f.sent = append(f.sent, sentMail{To: to, Subject: subject})
	return nil
}

type fakeAuditor struct {
	events []audit.Event
}

func (f *fakeAuditor) Record(_ context.Context, ev audit.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAuditor) actions() []string {
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Action)
	}
	return out
}

const holdTTL = 5 * time.Minute

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	locker  *fakeLocker
	mailer  *fakeMailer
	auditor *fakeAuditor
	clk     *clock.Fixed
	theater *Theater
	actor   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	locker := &fakeLocker{}
	mailer := &fakeMailer{}
	auditor := &fakeAuditor{}
	clk := clock.NewFixed(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))

	coordEmail := "coordinator@example.com"
	th := &Theater{ID: uuid.New(), Name: "Main Theater A", CoordEmail: &coordEmail}
	repo.theaters[th.ID] = th

	return &fixture{
		svc:     NewService(repo, locker, mailer, auditor, clk, zerolog.Nop(), holdTTL),
		repo:    repo,
		locker:  locker,
		mailer:  mailer,
		auditor: auditor,
		clk:     clk,
		theater: th,
		actor:   uuid.New(),
	}
}

func (fx *fixture) window(offset, length time.Duration) (time.Time, time.Time) {
	start := fx.clk.Now().Add(24 * time.Hour).Add(offset)
	return start, start.Add(length)
}

func TestHold_CreatesProvisionalWithTTL(t *testing.T) {
	fx := newFixture(t)
	start, end := fx.window(0, 2*time.Hour)

	booking, err := fx.svc.Hold(context.Background(), fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	assert.Equal(t, StatusProvisional, booking.Status)
	assert.Equal(t, fx.clk.Now().Add(holdTTL), booking.LockExpiresAt)
	assert.Equal(t, 1, fx.locker.calls)
	assert.Equal(t, []string{ActionHold}, fx.auditor.actions())
}

func TestHold_RejectsInvertedRange(t *testing.T) {
	fx := newFixture(t)
	start, end := fx.window(0, 2*time.Hour)

	_, err := fx.svc.Hold(context.Background(), fx.actor, uuid.New(), fx.theater.ID, end, start)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = fx.svc.Hold(context.Background(), fx.actor, uuid.New(), fx.theater.ID, start, start)
	assert.ErrorIs(t, err, ErrValidation)

	// Validation happens before the lock is ever taken.
	assert.Zero(t, fx.locker.calls)
}

func TestHold_UnknownTheater(t *testing.T) {
	fx := newFixture(t)
	start, end := fx.window(0, time.Hour)

	_, err := fx.svc.Hold(context.Background(), fx.actor, uuid.New(), uuid.New(), start, end)
	assert.ErrorIs(t, err, ErrTheaterNotFound)
}

func TestHold_OverlapWithLiveHold(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, 2*time.Hour)

	_, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	// A second hold shifted one hour still intersects the first.
	_, err = fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start.Add(time.Hour), end.Add(time.Hour))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestHold_AdjacentRangesDoNotCollide(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, 2*time.Hour)

	_, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	// [end, end+2h) shares only the boundary instant; half-open ranges.
	_, err = fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, end, end.Add(2*time.Hour))
	assert.NoError(t, err)
}

func TestHold_ReclaimsExpiredHold(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, 2*time.Hour)

	stale, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	fx.clk.Advance(holdTTL + time.Second)

	fresh, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	assert.Equal(t, StatusExpired, fx.repo.bookings[stale.ID].Status)
	assert.Equal(t, StatusProvisional, fx.repo.bookings[fresh.ID].Status)
	assert.Equal(t, []string{ActionHold, ActionExpire, ActionHold}, fx.auditor.actions())
}

func TestHold_ConfirmedBookingNeverReclaimed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, 2*time.Hour)

	booking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)
	_, err = fx.svc.Confirm(ctx, fx.actor, booking.ID)
	require.NoError(t, err)

	// Far past the original TTL; a confirmed booking still blocks the slot.
	fx.clk.Advance(48 * time.Hour)

	_, err = fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestHold_LockContention(t *testing.T) {
	fx := newFixture(t)
	fx.locker.busy = true
	start, end := fx.window(0, time.Hour)

	_, err := fx.svc.Hold(context.Background(), fx.actor, uuid.New(), fx.theater.ID, start, end)
	assert.ErrorIs(t, err, ErrTheaterBusy)
	assert.Empty(t, fx.repo.bookings)
}

func TestConfirm_JustBeforeExpiry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, 2*time.Hour)

	booking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	fx.clk.Advance(holdTTL - time.Second)

	confirmed, err := fx.svc.Confirm(ctx, fx.actor, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "coordinator@example.com", fx.mailer.sent[0].To)
}

func TestConfirm_JustAfterExpiry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, 2*time.Hour)

	booking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	// The row still reads provisional, but the persisted TTL is authoritative.
	fx.clk.Advance(holdTTL + time.Second)

	_, err = fx.svc.Confirm(ctx, fx.actor, booking.ID)
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, StatusExpired, fx.repo.bookings[booking.ID].Status)
	assert.Empty(t, fx.mailer.sent)
}

func TestConfirm_AlreadyConfirmed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, time.Hour)

	booking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)
	_, err = fx.svc.Confirm(ctx, fx.actor, booking.ID)
	require.NoError(t, err)

	_, err = fx.svc.Confirm(ctx, fx.actor, booking.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRelease_ProvisionalOnly(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, time.Hour)

	booking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)

	released, err := fx.svc.Release(ctx, fx.actor, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, released.Status)

	_, err = fx.svc.Release(ctx, fx.actor, booking.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRelease_FreesSlot(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	start, end := fx.window(0, time.Hour)

	booking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	require.NoError(t, err)
	_, err = fx.svc.Release(ctx, fx.actor, booking.ID)
	require.NoError(t, err)

	_, err = fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, start, end)
	assert.NoError(t, err)
}

func TestExpireOverdue_Sweep(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	s1, e1 := fx.window(0, time.Hour)
	s2, e2 := fx.window(2*time.Hour, time.Hour)
	s3, e3 := fx.window(4*time.Hour, time.Hour)

	overdue1, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, s1, e1)
	require.NoError(t, err)
	overdue2, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, s2, e2)
	require.NoError(t, err)

	confirmedBooking, err := fx.svc.Hold(ctx, fx.actor, uuid.New(), fx.theater.ID, s3, e3)
	require.NoError(t, err)
	_, err = fx.svc.Confirm(ctx, fx.actor, confirmedBooking.ID)
	require.NoError(t, err)

	fx.clk.Advance(holdTTL + time.Minute)

	n, err := fx.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, StatusExpired, fx.repo.bookings[overdue1.ID].Status)
	assert.Equal(t, StatusExpired, fx.repo.bookings[overdue2.ID].Status)
	assert.Equal(t, StatusConfirmed, fx.repo.bookings[confirmedBooking.ID].Status)

	// A second sweep finds nothing.
	n, err = fx.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookingOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	b := Booking{StartTime: base, EndTime: base.Add(2 * time.Hour)}

	assert.True(t, b.Overlaps(base.Add(time.Hour), base.Add(3*time.Hour)))
	assert.True(t, b.Overlaps(base.Add(-time.Hour), base.Add(time.Hour)))
	assert.False(t, b.Overlaps(b.EndTime, b.EndTime.Add(time.Hour)))
	assert.False(t, b.Overlaps(base.Add(-2*time.Hour), base))
}
