package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

var ErrInvalidSession = errors.New("invalid doctor session")

// DoctorSession is a recurring weekly availability template for one doctor
// at one clinic. Slots are derived from it, never stored.
type DoctorSession struct {
	ID                  uuid.UUID
	DoctorID            uuid.UUID
	ClinicID            uuid.UUID
	Weekdays            timegrid.WeekdaySet
	SlotDurationMinutes int
	MorningWindow       *timegrid.Window
	EveningWindow       *timegrid.Window
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (s *DoctorSession) Validate() error {
	if s.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidSession)
	}
	if s.ClinicID == uuid.Nil {
		return fmt.Errorf("%w: clinic_id is required", ErrInvalidSession)
	}
	if len(s.Weekdays) == 0 {
		return fmt.Errorf("%w: at least one weekday is required", ErrInvalidSession)
	}
	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidSession)
	}
	if s.MorningWindow == nil && s.EveningWindow == nil {
		return fmt.Errorf("%w: at least one window is required", ErrInvalidSession)
	}
	for _, w := range s.Windows() {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
	}
	if s.MorningWindow != nil && s.EveningWindow != nil &&
		s.MorningWindow.Overlaps(*s.EveningWindow) {
		return fmt.Errorf("%w: morning and evening windows overlap", ErrInvalidSession)
	}
	return nil
}

// Windows returns the configured windows in chronological emission order.
func (s *DoctorSession) Windows() []timegrid.Window {
	var ws []timegrid.Window
	if s.MorningWindow != nil {
		ws = append(ws, *s.MorningWindow)
	}
	if s.EveningWindow != nil {
		ws = append(ws, *s.EveningWindow)
	}
	return ws
}

func (s *DoctorSession) CoversWeekday(d time.Weekday) bool {
	return s.Weekdays.Contains(d)
}

// OnGrid reports whether start falls exactly on a slot boundary of one of
// the session's windows and returns the derived slot end.
func (s *DoctorSession) OnGrid(start timegrid.TimeOfDay) (timegrid.TimeOfDay, bool) {
	end := start.AddMinutes(s.SlotDurationMinutes)
	for _, w := range s.Windows() {
		if !w.Contains(start, end) {
			continue
		}
		if (start.Minutes()-w.Start.Minutes())%s.SlotDurationMinutes == 0 {
			return end, true
		}
	}
	return 0, false
}
