package consultation

import (
	"context"
	"errors"

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

const requestColumns = `
	id, patient_id, doctor_id, reason, status,
	reviewed_by, reviewed_at, review_notes,
	appointment_id, scheduled_for,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.DoctorID,
		&r.Reason,
		&r.Status,
		&r.ReviewedBy,
		&r.ReviewedAt,
		&r.ReviewNotes,
		&r.AppointmentID,
		&r.ScheduledFor,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (p *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM consultation_requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (p *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Request, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM consultation_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

func (p *PgRepository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM consultation_requests
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	var result []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func (p *PgRepository) Create(ctx context.Context, r Request) (*Request, error) {
	id := r.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO consultation_requests (id, patient_id, doctor_id, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+requestColumns+`
	`, id, r.PatientID, r.DoctorID, r.Reason, r.Status)

	return scanRequest(row)
}

func (p *PgRepository) Update(ctx context.Context, r Request, from Status) (*Request, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE consultation_requests
		SET status = $2,
		    reason = $3,
		    reviewed_by = $4,
		    reviewed_at = $5,
		    review_notes = $6,
		    appointment_id = $7,
		    scheduled_for = $8,
		    updated_at = now()
		WHERE id = $1
		  AND status = $9
		RETURNING `+requestColumns+`
	`, r.ID, r.Status, r.Reason, r.ReviewedBy, r.ReviewedAt, r.ReviewNotes, r.AppointmentID, r.ScheduledFor, from)

	updated, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			if _, getErr := p.GetByID(ctx, r.ID); getErr == nil {
				return nil, ErrConflict
			}
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return updated, nil
}
