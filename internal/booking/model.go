package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal states admit no further transitions.
func (s Status) Terminal() bool {
	return s != StatusBooked
}

// Occupies reports whether an appointment in this status holds its slot.
// Only cancellation frees the slot; completed and no-show bookings keep it
// consumed for audit history.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

func (s Status) CanTransitionTo(to Status) bool {
	return s == StatusBooked && to.Valid() && to != StatusBooked
}

// Appointment is the only persisted booking unit. Rows are never hard
// deleted; cancellation is a status transition.
type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	ClinicID    uuid.UUID
	PatientID   uuid.UUID
	Date        timegrid.Date
	StartTime   timegrid.TimeOfDay
	EndTime     timegrid.TimeOfDay
	Status      Status
	NeedsReview bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventLog is an append-only audit record of ledger mutations.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
