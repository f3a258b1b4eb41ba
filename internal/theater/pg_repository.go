package theater

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const bookingColumns = `
	id, case_id, theater_id, start_time, end_time, status, lock_expires_at, created_at, updated_at`

func scanTheater(row pgx.Row) (*Theater, error) {
	var t Theater

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Location,
		&t.CoordEmail,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTheaterNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.CaseID,
		&b.TheaterID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.LockExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetTheaterByID(ctx context.Context, id uuid.UUID) (*Theater, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, location, coordinator_email, created_at, updated_at
		FROM theaters
		WHERE id = $1
	`, id)
	return scanTheater(row)
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM theater_bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListByTheater(ctx context.Context, theaterID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM theater_bookings
		WHERE theater_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, theaterID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) FindOverlapping(ctx context.Context, theaterID uuid.UUID, start, end time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM theater_bookings
		WHERE theater_id = $1
		  AND status IN ('provisional', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
	`, theaterID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) CreateProvisional(ctx context.Context, b Booking) (*Booking, error) {
	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO theater_bookings (id, case_id, theater_id, start_time, end_time, status, lock_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'provisional', $6, now(), now())
		RETURNING `+bookingColumns+`
	`, id, b.CaseID, b.TheaterID, b.StartTime, b.EndTime, b.LockExpiresAt)

	return scanBooking(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE theater_bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns+`
	`, id, to, from)

	return scanBooking(row)
}

func (r *PgRepository) FindOverdueProvisional(ctx context.Context, now time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM theater_bookings
		WHERE status = 'provisional'
		  AND lock_expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}
