package appointment

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

const appointmentColumns = `
	id, patient_id, doctor_id, start_time, type, status, note, reason,
	checked_in_at, no_show, no_show_reason,
	confirmed_by, confirmation_notes, confirmed_at,
	rejected_by, rejection_reason, rejected_at,
	created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.Email,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var confirmedBy *uuid.UUID
	var confirmationNotes *string
	var confirmedAt *time.Time
	var rejectedBy *uuid.UUID
	var rejectionReason *string
	var rejectedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartTime,
		&a.Type,
		&a.Status,
		&a.Note,
		&a.Reason,
		&a.CheckedInAt,
		&a.NoShow,
		&a.NoShowReason,
		&confirmedBy,
		&confirmationNotes,
		&confirmedAt,
		&rejectedBy,
		&rejectionReason,
		&rejectedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if confirmedBy != nil && confirmedAt != nil {
		a.Confirmation = &DoctorConfirmation{
			DoctorID:    *confirmedBy,
			ConfirmedAt: *confirmedAt,
		}
		if confirmationNotes != nil {
			a.Confirmation.Notes = *confirmationNotes
		}
	}
	if rejectedBy != nil && rejectedAt != nil {
		a.Rejection = &AppointmentRejection{
			DoctorID:   *rejectedBy,
			RejectedAt: *rejectedAt,
		}
		if rejectionReason != nil {
			a.Rejection.Reason = *rejectionReason
		}
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, email, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ($1, $2)
		  AND created_at < $3
		ORDER BY created_at
	`, StatusPending, StatusPendingDoctorConfirmation, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, type, status, note, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.DoctorID, a.StartTime, a.Type, a.Status, a.Note, a.Reason)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment, from Status) (*Appointment, error) {
	var confirmedBy *uuid.UUID
	var confirmationNotes *string
	var confirmedAt *time.Time
	if a.Confirmation != nil {
		confirmedBy = &a.Confirmation.DoctorID
		confirmationNotes = &a.Confirmation.Notes
		t := a.Confirmation.ConfirmedAt
		confirmedAt = &t
	}
	var rejectedBy *uuid.UUID
	var rejectionReason *string
	var rejectedAt *time.Time
	if a.Rejection != nil {
		rejectedBy = &a.Rejection.DoctorID
		rejectionReason = &a.Rejection.Reason
		t := a.Rejection.RejectedAt
		rejectedAt = &t
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    note = $3,
		    reason = $4,
		    checked_in_at = $5,
		    no_show = $6,
		    no_show_reason = $7,
		    confirmed_by = $8,
		    confirmation_notes = $9,
		    confirmed_at = $10,
		    rejected_by = $11,
		    rejection_reason = $12,
		    rejected_at = $13,
		    updated_at = now()
		WHERE id = $1
		  AND status = $14
		RETURNING `+appointmentColumns+`
	`, a.ID, a.Status, a.Note, a.Reason, a.CheckedInAt, a.NoShow, a.NoShowReason,
		confirmedBy, confirmationNotes, confirmedAt,
		rejectedBy, rejectionReason, rejectedAt,
		from)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Either the row is gone or the status no longer matches.
			if _, getErr := r.GetAppointmentByID(ctx, a.ID); getErr == nil {
				return nil, ErrConflict
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return updated, nil
}
