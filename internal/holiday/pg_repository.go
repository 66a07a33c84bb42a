package holiday

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanHoliday(row pgx.Row) (*Holiday, error) {
	var (
		h         Holiday
		startDate time.Time
		endDate   time.Time
	)

	err := row.Scan(
		&h.ID,
		&h.ClinicID,
		&h.DoctorID,
		&startDate,
		&endDate,
		&h.Reason,
		&h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHolidayNotFound
		}
		return nil, err
	}

	h.StartDate = timegrid.DateOf(startDate)
	h.EndDate = timegrid.DateOf(endDate)
	return &h, nil
}

func (r *PgRepository) Create(ctx context.Context, h *Holiday) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO holidays (id, clinic_id, doctor_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`, h.ID, h.ClinicID, h.DoctorID, h.StartDate.Time(), h.EndDate.Time(), h.Reason)

	return row.Scan(&h.CreatedAt)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHolidayNotFound
	}
	return nil
}

func (r *PgRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, doctor_id, start_date, end_date, reason, created_at
		FROM holidays
		WHERE clinic_id = $1
		ORDER BY start_date
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHolidays(rows)
}

func (r *PgRepository) ListForDoctor(ctx context.Context, clinicID, doctorID uuid.UUID, from, to timegrid.Date) ([]Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, doctor_id, start_date, end_date, reason, created_at
		FROM holidays
		WHERE clinic_id = $1
		  AND (doctor_id IS NULL OR doctor_id = $2)
		  AND start_date <= $4
		  AND end_date >= $3
		ORDER BY start_date
	`, clinicID, doctorID, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHolidays(rows)
}

func collectHolidays(rows pgx.Rows) ([]Holiday, error) {
	var result []Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
