package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicstack/availability-engine/internal/booking"
	"github.com/clinicstack/availability-engine/internal/holiday"
	"github.com/clinicstack/availability-engine/internal/session"
	"github.com/clinicstack/availability-engine/internal/slot"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

var (
	ErrInvalidSlot  = errors.New("requested time does not correspond to a generated slot")
	ErrDateBlocked  = errors.New("date is blocked by a holiday")
	ErrInvalidRange = errors.New("invalid date range")
)

// AvailabilityCache is the read-side cache surface. Satisfied by
// redisclient.AvailabilityCache; nil-able via NopCache for tests and
// cacheless deployments.
type AvailabilityCache interface {
	Get(ctx context.Context, doctorID uuid.UUID, from, to string) ([]byte, bool, error)
	Set(ctx context.Context, doctorID uuid.UUID, from, to string, payload []byte) error
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error
}

// NopCache disables availability caching.
type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID, string, string) ([]byte, bool, error) {
	return nil, false, nil
}
func (NopCache) Set(context.Context, uuid.UUID, string, string, []byte) error { return nil }
func (NopCache) InvalidateDoctor(context.Context, uuid.UUID) error            { return nil }

// Service orchestrates the session registry, holiday overlay, slot
// generator and booking ledger to answer what's free and to commit
// bookings.
type Service struct {
	sessions    session.Repository
	holidays    holiday.Repository
	ledger      *booking.Ledger
	cache       AvailabilityCache
	horizonDays int
	log         zerolog.Logger
}

func NewService(sessions session.Repository, holidays holiday.Repository, ledger *booking.Ledger, cache AvailabilityCache, horizonDays int, log zerolog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if horizonDays <= 0 {
		horizonDays = 28
	}
	return &Service{
		sessions:    sessions,
		holidays:    holidays,
		ledger:      ledger,
		cache:       cache,
		horizonDays: horizonDays,
		log:         log.With().Str("component", "scheduling_service").Logger(),
	}
}

// GetAvailability returns the doctor's free slots over [from, to]. The read
// is lock-free and may trail concurrent bookings by a small window; Book is
// the source of truth, not this.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, from, to timegrid.Date) ([]slot.Slot, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidRange)
	}
	if from.Time().AddDate(0, 0, s.horizonDays).Before(to.Time()) {
		return nil, fmt.Errorf("%w: range exceeds %d day horizon", ErrInvalidRange, s.horizonDays)
	}

	if payload, ok, err := s.cache.Get(ctx, doctorID, from.String(), to.String()); err != nil {
		s.log.Error().Err(err).Stringer("doctor_id", doctorID).Msg("availability cache read failed")
	} else if ok {
		var cached []slot.Slot
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	sessions, err := s.sessions.ListActiveByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, session.ErrSessionNotFound
	}

	taken, err := s.ledger.Occupied(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}

	var free []slot.Slot
	for i := range sessions {
		sess := &sessions[i]
		overlay, err := s.overlayFor(ctx, sess.ClinicID, doctorID, from, to)
		if err != nil {
			return nil, err
		}
		blocked := func(d timegrid.Date) bool { return overlay.Blocked(doctorID, d) }
		for sl := range slot.Generate(sess, blocked, from, to) {
			if taken[booking.SlotKey(sl.DoctorID, sl.Date, sl.StartTime)] {
				continue
			}
			free = append(free, sl)
		}
	}

	sort.Slice(free, func(i, j int) bool {
		if free[i].Date != free[j].Date {
			return free[i].Date.Before(free[j].Date)
		}
		return free[i].StartTime < free[j].StartTime
	})

	if payload, err := json.Marshal(free); err == nil {
		if err := s.cache.Set(ctx, doctorID, from.String(), to.String(), payload); err != nil {
			s.log.Error().Err(err).Stringer("doctor_id", doctorID).Msg("availability cache write failed")
		}
	}

	return free, nil
}

// Book commits the slot for the patient. The end time is re-derived from
// the governing session; off-grid start times are rejected before any
// storage is touched.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) (*booking.Appointment, error) {
	sess, end, err := s.resolveSlot(ctx, doctorID, date, start)
	if err != nil {
		return nil, err
	}

	appt := &booking.Appointment{
		DoctorID:  doctorID,
		ClinicID:  sess.ClinicID,
		PatientID: patientID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}
	created, err := s.ledger.TryBook(ctx, appt)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, doctorID)
	return created, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	appt, err := s.ledger.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, appt.DoctorID)
	return appt, nil
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status booking.Status) (*booking.Appointment, error) {
	appt, err := s.ledger.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, appt.DoctorID)
	return appt, nil
}

// Reschedule validates the target slot exactly like Book before delegating
// to the ledger's transactional cancel-and-rebook.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate timegrid.Date, newStart timegrid.TimeOfDay) (*booking.Appointment, error) {
	old, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	_, end, err := s.resolveSlot(ctx, old.DoctorID, newDate, newStart)
	if err != nil {
		return nil, err
	}

	moved, err := s.ledger.Reschedule(ctx, id, newDate, newStart, end)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, old.DoctorID)
	return moved, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return s.ledger.Get(ctx, id)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Appointment, error) {
	return s.ledger.ListByPatient(ctx, patientID, limit, offset)
}

// resolveSlot finds the session governing (date, start) and derives the
// slot end. The start must land exactly on the session grid.
func (s *Service) resolveSlot(ctx context.Context, doctorID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) (*session.DoctorSession, timegrid.TimeOfDay, error) {
	sessions, err := s.sessions.ListActiveByDoctor(ctx, doctorID)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var covering []*session.DoctorSession
	for i := range sessions {
		if sessions[i].CoversWeekday(date.Weekday()) {
			covering = append(covering, &sessions[i])
		}
	}
	if len(covering) == 0 {
		return nil, 0, session.ErrSessionNotFound
	}

	for _, sess := range covering {
		end, ok := sess.OnGrid(start)
		if !ok {
			continue
		}
		overlay, err := s.overlayFor(ctx, sess.ClinicID, doctorID, date, date)
		if err != nil {
			return nil, 0, err
		}
		if overlay.Blocked(doctorID, date) {
			return nil, 0, ErrDateBlocked
		}
		return sess, end, nil
	}
	return nil, 0, ErrInvalidSlot
}

func (s *Service) overlayFor(ctx context.Context, clinicID, doctorID uuid.UUID, from, to timegrid.Date) (*holiday.Overlay, error) {
	entries, err := s.holidays.ListForDoctor(ctx, clinicID, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holiday.NewOverlay(entries), nil
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID) {
	if err := s.cache.InvalidateDoctor(ctx, doctorID); err != nil {
		s.log.Error().Err(err).Stringer("doctor_id", doctorID).Msg("availability cache invalidation failed")
	}
}
