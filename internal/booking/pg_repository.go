package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, doctor_id, clinic_id, patient_id, date, start_minutes, end_minutes,
	status, needs_review, created_at, updated_at
`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		date         time.Time
		startMinutes int32
		endMinutes   int32
	)

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.ClinicID,
		&a.PatientID,
		&date,
		&startMinutes,
		&endMinutes,
		&a.Status,
		&a.NeedsReview,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = timegrid.DateOf(date)
	a.StartTime = timegrid.TimeOfDay(startMinutes)
	a.EndTime = timegrid.TimeOfDay(endMinutes)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveForSlot(ctx context.Context, doctorID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND start_minutes = $3
		  AND status <> 'cancelled'
	`, doctorID, date.Time(), start.Minutes())
	return scanAppointment(row)
}

func (r *PgRepository) ListOccupied(ctx context.Context, doctorID uuid.UUID, from, to timegrid.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date BETWEEN $2 AND $3
		  AND status <> 'cancelled'
		ORDER BY date, start_minutes
	`, doctorID, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_minutes DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListBookedByDoctorClinic(ctx context.Context, doctorID, clinicID uuid.UUID, from timegrid.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND clinic_id = $2
		  AND date >= $3
		  AND status = 'booked'
		ORDER BY date, start_minutes
	`, doctorID, clinicID, from.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, doctor_id, clinic_id, patient_id, date, start_minutes, end_minutes,
			 status, needs_review, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.DoctorID, a.ClinicID, a.PatientID, a.Date.Time(),
		a.StartTime.Minutes(), a.EndTime.Minutes(), a.Status)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) Reschedule(ctx context.Context, oldID uuid.UUID, replacement *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'booked'
	`, oldID)
	if err != nil {
		return fmt.Errorf("cancel old appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, doctor_id, clinic_id, patient_id, date, start_minutes, end_minutes,
			 status, needs_review, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
		RETURNING created_at, updated_at
	`, replacement.ID, replacement.DoctorID, replacement.ClinicID, replacement.PatientID,
		replacement.Date.Time(), replacement.StartTime.Minutes(), replacement.EndTime.Minutes(),
		replacement.Status)

	if err := row.Scan(&replacement.CreatedAt, &replacement.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert replacement appointment: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) SetNeedsReview(ctx context.Context, ids []uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET needs_review = true,
		    updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
