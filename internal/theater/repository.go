package theater

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	GetTheaterByID(ctx context.Context, id uuid.UUID) (*Theater, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListByTheater(ctx context.Context, theaterID uuid.UUID, from, to time.Time) ([]Booking, error)

	// FindOverlapping returns provisional and confirmed bookings intersecting
	// [start, end) for the theater, expired and cancelled rows excluded.
	FindOverlapping(ctx context.Context, theaterID uuid.UUID, start, end time.Time) ([]Booking, error)

	CreateProvisional(ctx context.Context, b Booking) (*Booking, error)

	// UpdateStatus is a compare-and-swap move; ErrBookingNotFound means the
	// row is gone or no longer in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)

	// Sweeper support.
	FindOverdueProvisional(ctx context.Context, now time.Time) ([]Booking, error)
}
