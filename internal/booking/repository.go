package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already has an active appointment")
)

// Repository contains all DB interactions needed by the ledger.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetActiveForSlot returns the occupying appointment for the exact
	// (doctor, date, start) key, or ErrAppointmentNotFound.
	GetActiveForSlot(ctx context.Context, doctorID uuid.UUID, date timegrid.Date, start timegrid.TimeOfDay) (*Appointment, error)

	ListOccupied(ctx context.Context, doctorID uuid.UUID, from, to timegrid.Date) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListBookedByDoctorClinic(ctx context.Context, doctorID, clinicID uuid.UUID, from timegrid.Date) ([]Appointment, error)

	// Insert persists a new booked appointment. A storage-level uniqueness
	// violation on the active-slot key surfaces as ErrSlotTaken.
	Insert(ctx context.Context, a *Appointment) error

	// UpdateStatus is a compare-and-swap on status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Reschedule cancels the old appointment and inserts the replacement in
	// a single transaction. Any failure leaves the old booking untouched.
	Reschedule(ctx context.Context, oldID uuid.UUID, replacement *Appointment) error

	SetNeedsReview(ctx context.Context, ids []uuid.UUID) (int, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
