package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/session"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

func testSession(duration int, days ...time.Weekday) *session.DoctorSession {
	return &session.DoctorSession{
		ID:                  uuid.New(),
		DoctorID:            uuid.New(),
		ClinicID:            uuid.New(),
		Weekdays:            timegrid.NewWeekdaySet(days...),
		SlotDurationMinutes: duration,
		MorningWindow: &timegrid.Window{
			Start: timegrid.NewTimeOfDay(9, 0),
			End:   timegrid.NewTimeOfDay(12, 0),
		},
		Active: true,
	}
}

// 2026-03-02 is a Monday.
var monday = timegrid.NewDate(2026, time.March, 2)

func TestGenerateSingleDay(t *testing.T) {
	s := testSession(30, time.Monday)

	slots := Collect(Generate(s, nil, monday, monday))

	if len(slots) != 6 {
		t.Fatalf("got %d slots, want 6", len(slots))
	}
	first, last := slots[0], slots[len(slots)-1]
	if first.StartTime != timegrid.NewTimeOfDay(9, 0) {
		t.Errorf("first slot starts %v, want 09:00", first.StartTime)
	}
	if last.StartTime != timegrid.NewTimeOfDay(11, 30) || last.EndTime != timegrid.NewTimeOfDay(12, 0) {
		t.Errorf("last slot %v-%v, want 11:30-12:00", last.StartTime, last.EndTime)
	}
	for _, sl := range slots {
		if sl.DoctorID != s.DoctorID || sl.ClinicID != s.ClinicID || sl.Date != monday {
			t.Errorf("slot carries wrong identity: %+v", sl)
		}
	}
}

func TestGeneratePartialTrailingSlotDropped(t *testing.T) {
	// 50-minute slots in a 180-minute window: 3 fit, the trailing 30
	// minutes produce nothing.
	s := testSession(50, time.Monday)

	slots := Collect(Generate(s, nil, monday, monday))

	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	last := slots[len(slots)-1]
	if last.EndTime != timegrid.NewTimeOfDay(11, 30) {
		t.Errorf("last slot ends %v, want 11:30", last.EndTime)
	}
}

func TestGenerateSkipsUncoveredWeekdays(t *testing.T) {
	s := testSession(60, time.Monday, time.Wednesday, time.Friday)

	sunday := monday.AddDays(-1)
	saturday := monday.AddDays(5)
	slots := Collect(Generate(s, nil, sunday, saturday))

	wantDates := map[string]bool{
		monday.String():            true,
		monday.AddDays(2).String(): true,
		monday.AddDays(4).String(): true,
	}
	// 3 covered days, 3 one-hour slots each.
	if len(slots) != 9 {
		t.Fatalf("got %d slots, want 9", len(slots))
	}
	for _, sl := range slots {
		if !wantDates[sl.Date.String()] {
			t.Errorf("slot on uncovered day %v", sl.Date)
		}
	}
}

func TestGenerateBlockedDates(t *testing.T) {
	s := testSession(60, time.Monday, time.Wednesday)

	wednesday := monday.AddDays(2)
	blocked := func(d timegrid.Date) bool { return d == wednesday }

	slots := Collect(Generate(s, blocked, monday, wednesday))

	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3 (Wednesday suppressed)", len(slots))
	}
	for _, sl := range slots {
		if sl.Date == wednesday {
			t.Errorf("blocked date produced slot %+v", sl)
		}
	}
}

func TestGenerateTwoWindows(t *testing.T) {
	s := testSession(60, time.Monday)
	s.EveningWindow = &timegrid.Window{
		Start: timegrid.NewTimeOfDay(17, 0),
		End:   timegrid.NewTimeOfDay(19, 0),
	}

	slots := Collect(Generate(s, nil, monday, monday))

	if len(slots) != 5 {
		t.Fatalf("got %d slots, want 5 (3 morning + 2 evening)", len(slots))
	}
	// Morning slots come before evening slots.
	for i := 1; i < len(slots); i++ {
		if slots[i].StartTime <= slots[i-1].StartTime {
			t.Errorf("slots out of order at %d: %v then %v", i, slots[i-1].StartTime, slots[i].StartTime)
		}
	}
}

func TestGenerateRestartable(t *testing.T) {
	s := testSession(30, time.Monday, time.Tuesday)

	seq := Generate(s, nil, monday, monday.AddDays(1))
	first := Collect(seq)
	second := Collect(seq)

	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("slot %d differs between passes", i)
		}
	}
}

func TestGenerateEarlyStop(t *testing.T) {
	s := testSession(30, time.Monday)

	var got []Slot
	for sl := range Generate(s, nil, monday, monday) {
		got = append(got, sl)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d slots after break, want 2", len(got))
	}
}
