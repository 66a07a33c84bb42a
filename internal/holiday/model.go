package holiday

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

var ErrInvalidHoliday = errors.New("invalid holiday")

// Holiday suppresses availability for a clinic (DoctorID nil) or one
// doctor at that clinic, over an inclusive date range.
type Holiday struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	DoctorID  *uuid.UUID
	StartDate timegrid.Date
	EndDate   timegrid.Date
	Reason    string
	CreatedAt time.Time
}

func (h *Holiday) Validate() error {
	if h.ClinicID == uuid.Nil {
		return fmt.Errorf("%w: clinic_id is required", ErrInvalidHoliday)
	}
	if h.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidHoliday)
	}
	if h.EndDate.IsZero() {
		h.EndDate = h.StartDate
	}
	if h.EndDate.Before(h.StartDate) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidHoliday)
	}
	return nil
}

func (h *Holiday) Covers(date timegrid.Date) bool {
	return !date.Before(h.StartDate) && !date.After(h.EndDate)
}

// AppliesTo reports whether the entry affects the given doctor. Clinic-wide
// entries apply to every doctor at the clinic.
func (h *Holiday) AppliesTo(doctorID uuid.UUID) bool {
	return h.DoctorID == nil || *h.DoctorID == doctorID
}

// Overlay is a materialized set of holidays for one doctor/clinic and date
// range, queried once and probed per date during slot generation.
type Overlay struct {
	entries []Holiday
}

func NewOverlay(entries []Holiday) *Overlay {
	return &Overlay{entries: entries}
}

func (o *Overlay) Blocked(doctorID uuid.UUID, date timegrid.Date) bool {
	for i := range o.entries {
		if o.entries[i].AppliesTo(doctorID) && o.entries[i].Covers(date) {
			return true
		}
	}
	return false
}
