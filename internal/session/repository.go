package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("doctor session not found")
	ErrWeekdayConflict = errors.New("doctor already has an active session covering a requested weekday at this clinic")
	ErrSessionBusy     = errors.New("doctor sessions are being edited, please retry")
)

// Repository contains all DB interactions needed by the registry.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*DoctorSession, error)
	ListActive(ctx context.Context) ([]DoctorSession, error)
	ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorSession, error)
	ListActiveByDoctorClinic(ctx context.Context, doctorID, clinicID uuid.UUID) ([]DoctorSession, error)

	Create(ctx context.Context, s *DoctorSession) error
	Update(ctx context.Context, s *DoctorSession) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
