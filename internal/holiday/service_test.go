package holiday

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

type mockRepo struct {
	holidays map[uuid.UUID]*Holiday
}

func newMockRepo() *mockRepo {
	return &mockRepo{holidays: make(map[uuid.UUID]*Holiday)}
}

func (m *mockRepo) Create(_ context.Context, h *Holiday) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	cp := *h
	m.holidays[h.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.holidays[id]; !ok {
		return ErrHolidayNotFound
	}
	delete(m.holidays, id)
	return nil
}

func (m *mockRepo) ListByClinic(_ context.Context, clinicID uuid.UUID) ([]Holiday, error) {
	var out []Holiday
	for _, h := range m.holidays {
		if h.ClinicID == clinicID {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (m *mockRepo) ListForDoctor(_ context.Context, clinicID, doctorID uuid.UUID, from, to timegrid.Date) ([]Holiday, error) {
	var out []Holiday
	for _, h := range m.holidays {
		if h.ClinicID == clinicID && h.AppliesTo(doctorID) && !h.StartDate.After(to) && !h.EndDate.Before(from) {
			out = append(out, *h)
		}
	}
	return out, nil
}

type mockInvalidator struct {
	doctors []uuid.UUID
	flushes int
}

func (m *mockInvalidator) InvalidateDoctor(_ context.Context, doctorID uuid.UUID) error {
	m.doctors = append(m.doctors, doctorID)
	return nil
}

func (m *mockInvalidator) InvalidateAll(_ context.Context) error {
	m.flushes++
	return nil
}

var day = timegrid.NewDate(2026, time.December, 25)

func TestValidate(t *testing.T) {
	h := &Holiday{ClinicID: uuid.New(), StartDate: day}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if h.EndDate != h.StartDate {
		t.Errorf("EndDate = %v, want defaulted to StartDate", h.EndDate)
	}

	bad := []*Holiday{
		{StartDate: day},
		{ClinicID: uuid.New()},
		{ClinicID: uuid.New(), StartDate: day, EndDate: day.AddDays(-1)},
	}
	for i, h := range bad {
		if err := h.Validate(); !errors.Is(err, ErrInvalidHoliday) {
			t.Errorf("case %d: Validate = %v, want ErrInvalidHoliday", i, err)
		}
	}
}

func TestOverlayBlocked(t *testing.T) {
	clinicID := uuid.New()
	doctorA, doctorB := uuid.New(), uuid.New()

	overlay := NewOverlay([]Holiday{
		{ClinicID: clinicID, StartDate: day, EndDate: day.AddDays(1)},
		{ClinicID: clinicID, DoctorID: &doctorA, StartDate: day.AddDays(5), EndDate: day.AddDays(5)},
	})

	// Clinic-wide entry blocks everyone across its range.
	if !overlay.Blocked(doctorA, day) || !overlay.Blocked(doctorB, day.AddDays(1)) {
		t.Error("clinic-wide holiday did not block")
	}
	if overlay.Blocked(doctorA, day.AddDays(2)) {
		t.Error("date outside range blocked")
	}

	// Doctor-specific entry blocks only that doctor.
	if !overlay.Blocked(doctorA, day.AddDays(5)) {
		t.Error("doctor-specific holiday did not block its doctor")
	}
	if overlay.Blocked(doctorB, day.AddDays(5)) {
		t.Error("doctor-specific holiday blocked another doctor")
	}
}

func TestCreateInvalidation(t *testing.T) {
	repo := newMockRepo()
	cache := &mockInvalidator{}
	svc := NewService(repo, cache, zerolog.Nop())
	ctx := context.Background()

	// Clinic-wide create flushes everything.
	if _, err := svc.Create(ctx, &Holiday{ClinicID: uuid.New(), StartDate: day}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cache.flushes != 1 || len(cache.doctors) != 0 {
		t.Errorf("flushes=%d doctors=%v, want full flush only", cache.flushes, cache.doctors)
	}

	// Doctor-specific create only touches that doctor.
	doctorID := uuid.New()
	if _, err := svc.Create(ctx, &Holiday{ClinicID: uuid.New(), DoctorID: &doctorID, StartDate: day}); err != nil {
		t.Fatalf("Create doctor-specific: %v", err)
	}
	if cache.flushes != 1 || len(cache.doctors) != 1 || cache.doctors[0] != doctorID {
		t.Errorf("flushes=%d doctors=%v, want one doctor invalidation", cache.flushes, cache.doctors)
	}

	if _, err := svc.Create(ctx, &Holiday{StartDate: day}); !errors.Is(err, ErrInvalidHoliday) {
		t.Errorf("Create invalid = %v, want ErrInvalidHoliday", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newMockRepo()
	cache := &mockInvalidator{}
	svc := NewService(repo, cache, zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, &Holiday{ClinicID: uuid.New(), StartDate: day})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cache.flushes != 2 {
		t.Errorf("flushes = %d, want 2", cache.flushes)
	}

	if err := svc.Delete(ctx, uuid.New()); !errors.Is(err, ErrHolidayNotFound) {
		t.Errorf("Delete unknown = %v, want ErrHolidayNotFound", err)
	}
}
