package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicstack/availability-engine/internal/redis"
)

// ReviewFlagger marks committed bookings that no longer fall on a session's
// slot grid after an edit. Implemented by the booking ledger; edits never
// delete appointments.
type ReviewFlagger interface {
	FlagOutOfGrid(ctx context.Context, s *DoctorSession) (int, error)
}

// CacheInvalidator drops cached availability for a doctor. Every session
// write goes through it so stale slot lists cannot outlive an edit.
type CacheInvalidator interface {
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error
}

// Registry owns DoctorSession definitions.
type Registry struct {
	repo    Repository
	flagger ReviewFlagger
	cache   CacheInvalidator
	locker  redisclient.Locker
	log     zerolog.Logger
}

func NewRegistry(repo Repository, flagger ReviewFlagger, cache CacheInvalidator, locker redisclient.Locker, log zerolog.Logger) *Registry {
	return &Registry{
		repo:    repo,
		flagger: flagger,
		cache:   cache,
		locker:  locker,
		log:     log.With().Str("component", "session_registry").Logger(),
	}
}

// sessionLockKey covers every session a doctor holds at one clinic, so the
// weekday-conflict check and the write it guards run as a unit.
func sessionLockKey(doctorID, clinicID uuid.UUID) string {
	return fmt.Sprintf("sessions:%s:%s", doctorID, clinicID)
}

// Upsert creates the session, or updates it when s.ID names an existing one.
// A doctor may hold at most one active session per clinic covering a given
// weekday; overlapping weekday sets are rejected. The check and the write
// run under a per doctor/clinic lock, with the exclusion constraint on
// doctor_sessions as the storage-level backstop.
func (r *Registry) Upsert(ctx context.Context, s *DoctorSession) (*DoctorSession, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	err := r.locker.WithLock(ctx, sessionLockKey(s.DoctorID, s.ClinicID), func(lockCtx context.Context) error {
		existing, err := r.repo.ListActiveByDoctorClinic(lockCtx, s.DoctorID, s.ClinicID)
		if err != nil {
			return fmt.Errorf("list sessions for weekday check: %w", err)
		}
		for i := range existing {
			if existing[i].ID == s.ID {
				continue
			}
			if existing[i].Weekdays.Intersects(s.Weekdays) {
				return ErrWeekdayConflict
			}
		}

		isUpdate := false
		if s.ID != uuid.Nil {
			if _, err := r.repo.GetByID(lockCtx, s.ID); err == nil {
				isUpdate = true
			}
		} else {
			s.ID = uuid.New()
		}

		s.Active = true
		if isUpdate {
			if err := r.repo.Update(lockCtx, s); err != nil {
				return fmt.Errorf("update session: %w", err)
			}
			// Bookings stranded outside the new windows are flagged for manual
			// review, never silently removed.
			flagged, err := r.flagger.FlagOutOfGrid(lockCtx, s)
			if err != nil {
				return fmt.Errorf("flag out-of-grid appointments: %w", err)
			}
			if flagged > 0 {
				r.log.Warn().
					Stringer("session_id", s.ID).
					Stringer("doctor_id", s.DoctorID).
					Int("flagged", flagged).
					Msg("session edit stranded existing appointments")
			}
		} else {
			if err := r.repo.Create(lockCtx, s); err != nil {
				return fmt.Errorf("create session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSessionBusy
		}
		return nil, err
	}

	if err := r.cache.InvalidateDoctor(ctx, s.DoctorID); err != nil {
		r.log.Error().Err(err).Stringer("doctor_id", s.DoctorID).Msg("availability cache invalidation failed")
	}

	return s, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*DoctorSession, error) {
	return r.repo.GetByID(ctx, id)
}

func (r *Registry) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorSession, error) {
	return r.repo.ListActiveByDoctor(ctx, doctorID)
}

// Deactivate retires a template. Existing appointments stay untouched.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if err := r.cache.InvalidateDoctor(ctx, s.DoctorID); err != nil {
		r.log.Error().Err(err).Stringer("doctor_id", s.DoctorID).Msg("availability cache invalidation failed")
	}
	return nil
}
