package holiday

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CacheInvalidator drops cached availability affected by a holiday write.
type CacheInvalidator interface {
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

// Service owns holiday entries. Writes invalidate cached availability:
// per doctor for doctor-specific entries, clinic-wide entries flush
// everything since every doctor at the clinic is affected.
type Service struct {
	repo  Repository
	cache CacheInvalidator
	log   zerolog.Logger
}

func NewService(repo Repository, cache CacheInvalidator, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "holiday_overlay").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, h *Holiday) (*Holiday, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create holiday: %w", err)
	}
	s.invalidate(ctx, h)
	return h, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// The deleted entry's scope is unknown here; flush everything.
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Error().Err(err).Msg("availability cache invalidation failed")
	}
	return nil
}

func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Holiday, error) {
	return s.repo.ListByClinic(ctx, clinicID)
}

func (s *Service) invalidate(ctx context.Context, h *Holiday) {
	var err error
	if h.DoctorID != nil {
		err = s.cache.InvalidateDoctor(ctx, *h.DoctorID)
	} else {
		err = s.cache.InvalidateAll(ctx)
	}
	if err != nil {
		s.log.Error().Err(err).Stringer("holiday_id", h.ID).Msg("availability cache invalidation failed")
	}
}
