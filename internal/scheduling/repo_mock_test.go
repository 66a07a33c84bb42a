package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/booking"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

// bookingMemRepo backs the ledger in these tests with the same active-slot
// uniqueness rule the real storage enforces.
type bookingMemRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*booking.Appointment
}

func newBookingMemRepo() *bookingMemRepo {
	return &bookingMemRepo{appts: make(map[uuid.UUID]*booking.Appointment)}
}

func (m *bookingMemRepo) activeForSlotLocked(doctorID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) *booking.Appointment {
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Date == date && a.StartTime == start && a.Status.Occupies() {
			return a
		}
	}
	return nil
}

func (m *bookingMemRepo) GetByID(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *bookingMemRepo) GetActiveForSlot(_ context.Context, doctorID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) (*booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.activeForSlotLocked(doctorID, date, start); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, booking.ErrAppointmentNotFound
}

func (m *bookingMemRepo) ListOccupied(_ context.Context, doctorID uuid.UUID, from, to timegrid.Date) ([]booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && !a.Date.Before(from) && !a.Date.After(to) && a.Status.Occupies() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *bookingMemRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *bookingMemRepo) ListBookedByDoctorClinic(_ context.Context, doctorID, clinicID uuid.UUID, from timegrid.Date) ([]booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.ClinicID == clinicID && a.Status == booking.StatusBooked && !a.Date.Before(from) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *bookingMemRepo) Insert(_ context.Context, a *booking.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeForSlotLocked(a.DoctorID, a.Date, a.StartTime) != nil {
		return booking.ErrSlotTaken
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *bookingMemRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to booking.Status) (*booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *bookingMemRepo) Reschedule(_ context.Context, oldID uuid.UUID, replacement *booking.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.appts[oldID]
	if !ok || old.Status != booking.StatusBooked {
		return booking.ErrAppointmentNotFound
	}
	if ex := m.activeForSlotLocked(replacement.DoctorID, replacement.Date, replacement.StartTime); ex != nil && ex.ID != oldID {
		return booking.ErrSlotTaken
	}
	old.Status = booking.StatusCancelled
	cp := *replacement
	m.appts[replacement.ID] = &cp
	return nil
}

func (m *bookingMemRepo) SetNeedsReview(_ context.Context, ids []uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := m.appts[id]; ok && !a.NeedsReview {
			a.NeedsReview = true
			n++
		}
	}
	return n, nil
}

func (m *bookingMemRepo) InsertEvent(_ context.Context, _ booking.EventLog) error {
	return nil
}
