package theater

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProvisional Status = "provisional"
	StatusConfirmed   Status = "confirmed"
	StatusExpired     Status = "expired"
	StatusCancelled   Status = "cancelled"
)

type Theater struct {
	ID          uuid.UUID
	Name        string
	Location    *string
	CoordEmail  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking is a reservation of one theater for one surgical case. It starts
// as a provisional hold with a server-side expiry; the hold must be
// confirmed before lock_expires_at or it is reclaimed.
type Booking struct {
	ID            uuid.UUID
	CaseID        uuid.UUID
	TheaterID     uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	LockExpiresAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Overlaps reports whether the booking intersects the half-open range
// [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// HoldExpired reports whether the provisional hold has outlived its TTL at
// the given instant.
func (b Booking) HoldExpired(now time.Time) bool {
	return b.Status == StatusProvisional && b.LockExpiresAt.Before(now)
}
