package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicstack/availability-engine/internal/db"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	applied, err := db.Migrate(ctx, pool, migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	log.Info().Int("applied", applied).Msg("migrations up to date")

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	clinics, err := seedClinics(seedCtx, pool, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("seed clinics")
	}
	doctors, err := seedDoctors(seedCtx, pool, clinics, 40)
	if err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(seedCtx, pool, 2000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedSessions(seedCtx, pool, doctors); err != nil {
		log.Fatal().Err(err).Msg("seed sessions")
	}
	if err := seedHolidays(seedCtx, pool, clinics); err != nil {
		log.Fatal().Err(err).Msg("seed holidays")
	}

	log.Info().Msg("seed complete")
}

type doctorRow struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding clinics")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, gofakeit.Company()+" Clinic", gofakeit.TimeZoneRegion())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, count int) ([]doctorRow, error) {
	log.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	doctors := make([]doctorRow, 0, count)
	for i := 0; i < count; i++ {
		d := doctorRow{
			ID:       uuid.New(),
			ClinicID: clinics[gofakeit.Number(0, len(clinics)-1)],
		}
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, clinic_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, d.ID, d.ClinicID, "Dr. "+gofakeit.Name(), spec)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return doctors, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

// seedSessions gives every doctor one weekly template: Mon/Wed/Fri or
// Tue/Thu/Sat, a morning window, usually an evening one too.
func seedSessions(ctx context.Context, pool *pgxpool.Pool, doctors []doctorRow) error {
	log.Info().Int("count", len(doctors)).Msg("seeding doctor sessions")

	durations := []int{10, 15, 20, 30}
	daySets := [][]int32{
		{1, 3, 5}, // Mon Wed Fri
		{2, 4, 6}, // Tue Thu Sat
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, d := range doctors {
		days := daySets[gofakeit.Number(0, 1)]
		duration := durations[gofakeit.Number(0, len(durations)-1)]

		morningStart := timegrid.NewTimeOfDay(9, 0).Minutes()
		morningEnd := timegrid.NewTimeOfDay(12, 0).Minutes()

		var eveningStart, eveningEnd *int
		if gofakeit.Bool() {
			s := timegrid.NewTimeOfDay(17, 0).Minutes()
			e := timegrid.NewTimeOfDay(20, 0).Minutes()
			eveningStart, eveningEnd = &s, &e
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_sessions
				(id, doctor_id, clinic_id, weekdays, slot_duration_minutes,
				 morning_start, morning_end, evening_start, evening_end,
				 active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, now(), now())
		`, uuid.New(), d.ID, d.ClinicID, days, duration,
			morningStart, morningEnd, eveningStart, eveningEnd)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// seedHolidays adds one upcoming clinic-wide holiday per clinic.
func seedHolidays(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID) error {
	log.Info().Int("count", len(clinics)).Msg("seeding holidays")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, clinicID := range clinics {
		day := timegrid.DateOf(time.Now()).AddDays(gofakeit.Number(7, 21))
		_, err := tx.Exec(ctx, `
			INSERT INTO holidays (id, clinic_id, doctor_id, start_date, end_date, reason, created_at)
			VALUES ($1, $2, NULL, $3, $3, $4, now())
		`, uuid.New(), clinicID, day.Time(), "Public holiday")
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
