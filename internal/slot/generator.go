package slot

import (
	"iter"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/session"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

// Slot is a derived bookable interval. Slots are never persisted; they are
// recomputed from the owning DoctorSession on every query.
type Slot struct {
	DoctorID  uuid.UUID          `json:"doctor_id"`
	ClinicID  uuid.UUID          `json:"clinic_id"`
	Date      timegrid.Date      `json:"date"`
	StartTime timegrid.TimeOfDay `json:"start_time"`
	EndTime   timegrid.TimeOfDay `json:"end_time"`
}

// BlockedFunc reports whether a date is suppressed by a holiday overlay.
type BlockedFunc func(date timegrid.Date) bool

// Generate expands a recurring session into its concrete slots over
// [from, to], chronologically. The sequence is lazy and restartable:
// ranging over it twice with identical inputs yields identical output.
//
// A date contributes slots only when its weekday is in the session set and
// blocked returns false. Within each window the walk steps by the slot
// duration from the window start; a slot whose end would pass the window
// end is dropped rather than truncated.
func Generate(s *session.DoctorSession, blocked BlockedFunc, from, to timegrid.Date) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		for date := from; !date.After(to); date = date.AddDays(1) {
			if !s.CoversWeekday(date.Weekday()) {
				continue
			}
			if blocked != nil && blocked(date) {
				continue
			}
			for _, w := range s.Windows() {
				for start := w.Start; start.AddMinutes(s.SlotDurationMinutes) <= w.End; start = start.AddMinutes(s.SlotDurationMinutes) {
					sl := Slot{
						DoctorID:  s.DoctorID,
						ClinicID:  s.ClinicID,
						Date:      date,
						StartTime: start,
						EndTime:   start.AddMinutes(s.SlotDurationMinutes),
					}
					if !yield(sl) {
						return
					}
				}
			}
		}
	}
}

// Collect materializes the sequence. Callers should bound the range first.
func Collect(seq iter.Seq[Slot]) []Slot {
	var out []Slot
	for sl := range seq {
		out = append(out, sl)
	}
	return out
}
