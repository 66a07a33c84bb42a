package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicstack/availability-engine/internal/redis"
	"github.com/clinicstack/availability-engine/internal/session"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingCancelled   = "BOOKING_CANCELLED"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"
	EventBookingStatusSet   = "BOOKING_STATUS_SET"
	EventBookingFlagged     = "BOOKING_FLAGGED"
)

var (
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRescheduleNotActive = errors.New("only booked appointments can be rescheduled")
)

// Ledger owns Appointment mutation and enforces the at-most-one active
// booking per (doctor, date, start) invariant.
type Ledger struct {
	repo   Repository
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewLedger(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		locker: locker,
		log:    log.With().Str("component", "booking_ledger").Logger(),
	}
}

// SlotKey is the lock key for one bookable slot. Unrelated doctors and
// dates never contend on it.
func SlotKey(doctorID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) string {
	return fmt.Sprintf("slot:%s:%s:%s", doctorID, date, start)
}

// TryBook reserves the slot for the patient. The conflict check and insert
// run inside the per-slot lock; the partial unique index on active bookings
// is the storage-level backstop, so a racing insert still maps to
// ErrSlotTaken rather than a duplicate.
func (l *Ledger) TryBook(ctx context.Context, a *Appointment) (*Appointment, error) {
	a.ID = uuid.New()
	a.Status = StatusBooked

	var created *Appointment

	err := l.locker.WithLock(ctx, SlotKey(a.DoctorID, a.Date, a.StartTime), func(lockCtx context.Context) error {
		existing, err := l.repo.GetActiveForSlot(lockCtx, a.DoctorID, a.Date, a.StartTime)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		if err := l.repo.Insert(lockCtx, a); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		created = a

		l.logEvent(lockCtx, a.ID, EventBookingCreated, map[string]any{
			"doctor_id":  a.DoctorID.String(),
			"patient_id": a.PatientID.String(),
			"date":       a.Date.String(),
			"start_time": a.StartTime.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Cancel transitions the appointment to cancelled, freeing its slot.
// Cancelling an already-cancelled appointment is a no-op, not an error.
func (l *Ledger) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusCancelled:
		return appt, nil
	case StatusBooked:
	default:
		return nil, ErrInvalidTransition
	}

	updated, err := l.repo.UpdateStatus(ctx, id, StatusBooked, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition; re-read for idempotence.
			current, readErr := l.repo.GetByID(ctx, id)
			if readErr == nil && current.Status == StatusCancelled {
				return current, nil
			}
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	l.logEvent(ctx, id, EventBookingCancelled, map[string]any{})
	return updated, nil
}

// SetStatus applies a caller-requested transition (completed, no_show,
// cancelled). Terminal states admit nothing further.
func (l *Ledger) SetStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if to == StatusCancelled {
		return l.Cancel(ctx, id)
	}

	appt, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	updated, err := l.repo.UpdateStatus(ctx, id, StatusBooked, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("set appointment status: %w", err)
	}

	l.logEvent(ctx, id, EventBookingStatusSet, map[string]any{"status": string(to)})
	return updated, nil
}

// Reschedule moves a booked appointment to a new slot. Cancel-old and
// insert-new are one transaction; when the target slot is taken the old
// booking is left untouched.
func (l *Ledger) Reschedule(ctx context.Context, id uuid.UUID, newDate timegrid.Date, newStart, newEnd timegrid.TimeOfDay) (*Appointment, error) {
	old, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != StatusBooked {
		return nil, ErrRescheduleNotActive
	}

	replacement := &Appointment{
		ID:        uuid.New(),
		DoctorID:  old.DoctorID,
		ClinicID:  old.ClinicID,
		PatientID: old.PatientID,
		Date:      newDate,
		StartTime: newStart,
		EndTime:   newEnd,
		Status:    StatusBooked,
	}

	err = l.locker.WithLock(ctx, SlotKey(old.DoctorID, newDate, newStart), func(lockCtx context.Context) error {
		existing, err := l.repo.GetActiveForSlot(lockCtx, old.DoctorID, newDate, newStart)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check target slot: %w", err)
		}
		// The appointment being moved does not block its own target; moving
		// to the current slot cancels and re-inserts like any other move.
		if existing != nil && existing.ID != old.ID {
			return ErrSlotTaken
		}
		return l.repo.Reschedule(lockCtx, old.ID, replacement)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	l.logEvent(ctx, replacement.ID, EventBookingRescheduled, map[string]any{
		"previous_id": old.ID.String(),
		"date":        newDate.String(),
		"start_time":  newStart.String(),
	})
	return replacement, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return l.repo.GetByID(ctx, id)
}

func (l *Ledger) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return l.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Occupied returns the set of taken slot keys for a doctor over a range.
func (l *Ledger) Occupied(ctx context.Context, doctorID uuid.UUID, from, to timegrid.Date) (map[string]bool, error) {
	appts, err := l.repo.ListOccupied(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	taken := make(map[string]bool, len(appts))
	for i := range appts {
		taken[SlotKey(appts[i].DoctorID, appts[i].Date, appts[i].StartTime)] = true
	}
	return taken, nil
}

// FlagOutOfGrid marks booked future appointments that no longer fall on the
// session's slot grid after an edit. Implements session.ReviewFlagger.
func (l *Ledger) FlagOutOfGrid(ctx context.Context, s *session.DoctorSession) (int, error) {
	appts, err := l.repo.ListBookedByDoctorClinic(ctx, s.DoctorID, s.ClinicID, timegrid.DateOf(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("list booked appointments: %w", err)
	}

	var stranded []uuid.UUID
	for i := range appts {
		if appts[i].NeedsReview {
			continue
		}
		if !fitsGrid(s, &appts[i]) {
			stranded = append(stranded, appts[i].ID)
		}
	}
	if len(stranded) == 0 {
		return 0, nil
	}

	n, err := l.repo.SetNeedsReview(ctx, stranded)
	if err != nil {
		return 0, fmt.Errorf("set needs_review: %w", err)
	}
	for _, id := range stranded {
		l.logEvent(ctx, id, EventBookingFlagged, map[string]any{
			"session_id": s.ID.String(),
		})
	}
	return n, nil
}

func fitsGrid(s *session.DoctorSession, a *Appointment) bool {
	if !s.CoversWeekday(a.Date.Weekday()) {
		return false
	}
	end, ok := s.OnGrid(a.StartTime)
	return ok && end == a.EndTime
}

func (l *Ledger) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := l.repo.InsertEvent(ctx, ev); err != nil {
		l.log.Error().Err(err).
			Str("event", eventType).
			Stringer("appointment_id", appointmentID).
			Msg("insert event log")
	}
}
