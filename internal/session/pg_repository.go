package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

const exclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// isExclusionViolation reports whether the weekday exclusion constraint on
// doctor_sessions rejected the write.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

const sessionColumns = `
	id, doctor_id, clinic_id, weekdays, slot_duration_minutes,
	morning_start, morning_end, evening_start, evening_end,
	active, created_at, updated_at
`

// Helpers

func scanSession(row pgx.Row) (*DoctorSession, error) {
	var (
		s            DoctorSession
		weekdays     []int32
		morningStart *int32
		morningEnd   *int32
		eveningStart *int32
		eveningEnd   *int32
	)

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.ClinicID,
		&weekdays,
		&s.SlotDurationMinutes,
		&morningStart,
		&morningEnd,
		&eveningStart,
		&eveningEnd,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.Weekdays = make(timegrid.WeekdaySet, len(weekdays))
	for _, d := range weekdays {
		s.Weekdays[time.Weekday(d)] = true
	}
	s.MorningWindow = windowFromMinutes(morningStart, morningEnd)
	s.EveningWindow = windowFromMinutes(eveningStart, eveningEnd)

	return &s, nil
}

func windowFromMinutes(start, end *int32) *timegrid.Window {
	if start == nil || end == nil {
		return nil
	}
	return &timegrid.Window{
		Start: timegrid.TimeOfDay(*start),
		End:   timegrid.TimeOfDay(*end),
	}
}

func windowToMinutes(w *timegrid.Window) (start, end *int32) {
	if w == nil {
		return nil, nil
	}
	s := int32(w.Start.Minutes())
	e := int32(w.End.Minutes())
	return &s, &e
}

func weekdaysToInts(set timegrid.WeekdaySet) []int32 {
	days := set.Days()
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*DoctorSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM doctor_sessions
		WHERE id = $1
	`, id)
	return scanSession(row)
}

func (r *PgRepository) ListActive(ctx context.Context) ([]DoctorSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM doctor_sessions
		WHERE active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *PgRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM doctor_sessions
		WHERE doctor_id = $1 AND active
		ORDER BY created_at
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *PgRepository) ListActiveByDoctorClinic(ctx context.Context, doctorID, clinicID uuid.UUID) ([]DoctorSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM doctor_sessions
		WHERE doctor_id = $1 AND clinic_id = $2 AND active
		ORDER BY created_at
	`, doctorID, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]DoctorSession, error) {
	var result []DoctorSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, s *DoctorSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	ms, me := windowToMinutes(s.MorningWindow)
	es, ee := windowToMinutes(s.EveningWindow)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctor_sessions
			(id, doctor_id, clinic_id, weekdays, slot_duration_minutes,
			 morning_start, morning_end, evening_start, evening_end,
			 active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING created_at, updated_at
	`, s.ID, s.DoctorID, s.ClinicID, weekdaysToInts(s.Weekdays), s.SlotDurationMinutes,
		ms, me, es, ee, s.Active)

	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		if isExclusionViolation(err) {
			return ErrWeekdayConflict
		}
		return err
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, s *DoctorSession) error {
	ms, me := windowToMinutes(s.MorningWindow)
	es, ee := windowToMinutes(s.EveningWindow)

	row := r.pool.QueryRow(ctx, `
		UPDATE doctor_sessions
		SET weekdays = $2,
		    slot_duration_minutes = $3,
		    morning_start = $4,
		    morning_end = $5,
		    evening_start = $6,
		    evening_end = $7,
		    active = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, s.ID, weekdaysToInts(s.Weekdays), s.SlotDurationMinutes, ms, me, es, ee, s.Active)

	err := row.Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if isExclusionViolation(err) {
		return ErrWeekdayConflict
	}
	return err
}

func (r *PgRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctor_sessions
		SET active = false, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
