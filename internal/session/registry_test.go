package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicstack/availability-engine/internal/redis"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

type mockRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*DoctorSession
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[uuid.UUID]*DoctorSession)}
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*DoctorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) ListActive(_ context.Context) ([]DoctorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorSession
	for _, s := range m.sessions {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockRepo) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID) ([]DoctorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorSession
	for _, s := range m.sessions {
		if s.Active && s.DoctorID == doctorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockRepo) ListActiveByDoctorClinic(_ context.Context, doctorID, clinicID uuid.UUID) ([]DoctorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorSession
	for _, s := range m.sessions {
		if s.Active && s.DoctorID == doctorID && s.ClinicID == clinicID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, s *DoctorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, s *DoctorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Active = false
	return nil
}

type mockFlagger struct {
	calls   int
	flagged int
}

func (m *mockFlagger) FlagOutOfGrid(_ context.Context, _ *DoctorSession) (int, error) {
	m.calls++
	return m.flagged, nil
}

type mockInvalidator struct {
	doctors []uuid.UUID
}

func (m *mockInvalidator) InvalidateDoctor(_ context.Context, doctorID uuid.UUID) error {
	m.doctors = append(m.doctors, doctorID)
	return nil
}

func validSession() *DoctorSession {
	return &DoctorSession{
		DoctorID:            uuid.New(),
		ClinicID:            uuid.New(),
		Weekdays:            timegrid.NewWeekdaySet(time.Monday, time.Wednesday),
		SlotDurationMinutes: 30,
		MorningWindow: &timegrid.Window{
			Start: timegrid.NewTimeOfDay(9, 0),
			End:   timegrid.NewTimeOfDay(12, 0),
		},
	}
}

func newTestRegistry() (*Registry, *mockRepo, *mockFlagger, *mockInvalidator) {
	repo := newMockRepo()
	flagger := &mockFlagger{}
	cache := &mockInvalidator{}
	return NewRegistry(repo, flagger, cache, redisclient.NewLocalLocker(), zerolog.Nop()), repo, flagger, cache
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DoctorSession)
		valid  bool
	}{
		{"complete", func(s *DoctorSession) {}, true},
		{"missing doctor", func(s *DoctorSession) { s.DoctorID = uuid.Nil }, false},
		{"missing clinic", func(s *DoctorSession) { s.ClinicID = uuid.Nil }, false},
		{"no weekdays", func(s *DoctorSession) { s.Weekdays = nil }, false},
		{"zero duration", func(s *DoctorSession) { s.SlotDurationMinutes = 0 }, false},
		{"negative duration", func(s *DoctorSession) { s.SlotDurationMinutes = -15 }, false},
		{"no windows", func(s *DoctorSession) { s.MorningWindow = nil }, false},
		{"inverted window", func(s *DoctorSession) {
			s.MorningWindow = &timegrid.Window{Start: timegrid.NewTimeOfDay(12, 0), End: timegrid.NewTimeOfDay(9, 0)}
		}, false},
		{"overlapping windows", func(s *DoctorSession) {
			s.EveningWindow = &timegrid.Window{Start: timegrid.NewTimeOfDay(11, 0), End: timegrid.NewTimeOfDay(14, 0)}
		}, false},
		{"evening only", func(s *DoctorSession) {
			s.MorningWindow = nil
			s.EveningWindow = &timegrid.Window{Start: timegrid.NewTimeOfDay(17, 0), End: timegrid.NewTimeOfDay(20, 0)}
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSession()
			tc.mutate(s)
			err := s.Validate()
			if tc.valid && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatal("Validate succeeded, want error")
				}
				if !errors.Is(err, ErrInvalidSession) {
					t.Errorf("error %v does not wrap ErrInvalidSession", err)
				}
			}
		})
	}
}

func TestOnGrid(t *testing.T) {
	s := validSession()

	end, ok := s.OnGrid(timegrid.NewTimeOfDay(9, 30))
	if !ok || end != timegrid.NewTimeOfDay(10, 0) {
		t.Errorf("OnGrid(09:30) = %v, %v; want 10:00, true", end, ok)
	}

	// Off the 30-minute grid.
	if _, ok := s.OnGrid(timegrid.NewTimeOfDay(9, 15)); ok {
		t.Error("OnGrid(09:15) accepted off-grid start")
	}
	// Outside every window.
	if _, ok := s.OnGrid(timegrid.NewTimeOfDay(14, 0)); ok {
		t.Error("OnGrid(14:00) accepted out-of-window start")
	}
	// Last slot of the window fits exactly.
	if _, ok := s.OnGrid(timegrid.NewTimeOfDay(11, 30)); !ok {
		t.Error("OnGrid(11:30) rejected final slot")
	}
	// Start on grid but slot would cross the window end.
	s.SlotDurationMinutes = 45
	if _, ok := s.OnGrid(timegrid.NewTimeOfDay(11, 15)); ok {
		t.Error("OnGrid(11:15) accepted slot crossing window end")
	}
}

func TestUpsertCreate(t *testing.T) {
	reg, repo, flagger, cache := newTestRegistry()

	s := validSession()
	created, err := reg.Upsert(context.Background(), s)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("created session has no ID")
	}
	if !created.Active {
		t.Error("created session is not active")
	}
	if _, ok := repo.sessions[created.ID]; !ok {
		t.Error("session not persisted")
	}
	if flagger.calls != 0 {
		t.Errorf("create flagged appointments %d times, want 0", flagger.calls)
	}
	if len(cache.doctors) != 1 || cache.doctors[0] != s.DoctorID {
		t.Errorf("cache invalidations = %v, want [%v]", cache.doctors, s.DoctorID)
	}
}

func TestUpsertRejectsWeekdayConflict(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	ctx := context.Background()

	first := validSession()
	if _, err := reg.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}

	second := validSession()
	second.DoctorID = first.DoctorID
	second.ClinicID = first.ClinicID
	second.Weekdays = timegrid.NewWeekdaySet(time.Wednesday, time.Friday)

	_, err := reg.Upsert(ctx, second)
	if !errors.Is(err, ErrWeekdayConflict) {
		t.Fatalf("Upsert = %v, want ErrWeekdayConflict", err)
	}

	// Disjoint weekdays are fine.
	second.Weekdays = timegrid.NewWeekdaySet(time.Tuesday, time.Friday)
	if _, err := reg.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert disjoint: %v", err)
	}

	// Same doctor at another clinic never conflicts.
	third := validSession()
	third.DoctorID = first.DoctorID
	if _, err := reg.Upsert(ctx, third); err != nil {
		t.Fatalf("Upsert other clinic: %v", err)
	}
}

func TestUpsertConcurrentWeekdayConflictSingleWinner(t *testing.T) {
	reg, repo, _, _ := newTestRegistry()
	ctx := context.Background()

	doctorID := uuid.New()
	clinicID := uuid.New()

	const workers = 16
	var (
		start     = make(chan struct{})
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	// All workers race to register a Monday session for the same doctor and
	// clinic. The conflict check runs under the per doctor/clinic lock, so
	// exactly one may win no matter how the goroutines interleave.
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := validSession()
			s.DoctorID = doctorID
			s.ClinicID = clinicID
			<-start
			_, err := reg.Upsert(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrWeekdayConflict):
				conflicts++
			default:
				t.Errorf("Upsert: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
	if conflicts != workers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, workers-1)
	}

	active, err := repo.ListActiveByDoctorClinic(ctx, doctorID, clinicID)
	if err != nil {
		t.Fatalf("ListActiveByDoctorClinic: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("persisted sessions = %d, want 1", len(active))
	}
}

func TestUpsertUpdateFlagsStrandedBookings(t *testing.T) {
	reg, _, flagger, cache := newTestRegistry()
	ctx := context.Background()

	s := validSession()
	created, err := reg.Upsert(ctx, s)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	flagger.flagged = 2
	created.MorningWindow = &timegrid.Window{
		Start: timegrid.NewTimeOfDay(10, 0),
		End:   timegrid.NewTimeOfDay(13, 0),
	}
	updated, err := reg.Upsert(ctx, created)
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("update changed ID: %v -> %v", created.ID, updated.ID)
	}
	if flagger.calls != 1 {
		t.Errorf("flagger calls = %d, want 1", flagger.calls)
	}
	if len(cache.doctors) != 2 {
		t.Errorf("cache invalidations = %d, want 2", len(cache.doctors))
	}
}

func TestUpsertUpdateExcludesSelfFromConflictCheck(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	ctx := context.Background()

	s := validSession()
	created, err := reg.Upsert(ctx, s)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Re-submitting the same session with overlapping (identical) weekdays
	// must not conflict with itself.
	if _, err := reg.Upsert(ctx, created); err != nil {
		t.Fatalf("Upsert self: %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	reg, repo, _, cache := newTestRegistry()
	ctx := context.Background()

	s := validSession()
	created, err := reg.Upsert(ctx, s)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := reg.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if repo.sessions[created.ID].Active {
		t.Error("session still active after Deactivate")
	}
	if len(cache.doctors) != 2 {
		t.Errorf("cache invalidations = %d, want 2", len(cache.doctors))
	}

	if err := reg.Deactivate(ctx, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Deactivate unknown = %v, want ErrSessionNotFound", err)
	}
}
