package holiday

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/timegrid"
)

var ErrHolidayNotFound = errors.New("holiday not found")

// Repository contains all DB interactions needed by the overlay.
type Repository interface {
	Create(ctx context.Context, h *Holiday) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Holiday, error)

	// ListForDoctor returns clinic-wide entries plus entries specific to the
	// doctor, restricted to ranges touching [from, to].
	ListForDoctor(ctx context.Context, clinicID, doctorID uuid.UUID, from, to timegrid.Date) ([]Holiday, error)
}
