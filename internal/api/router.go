package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicstack/availability-engine/internal/holiday"
	"github.com/clinicstack/availability-engine/internal/scheduling"
	"github.com/clinicstack/availability-engine/internal/session"
)

type RouterConfig struct {
	Scheduling *scheduling.Service
	Sessions   *session.Registry
	Holidays   *holiday.Service
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Env        string
	Version    string
	Logger     zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability templates
	r.Post("/doctor-sessions", upsertSessionHandler(cfg.Sessions))
	r.Get("/doctor-sessions", listSessionsHandler(cfg.Sessions))
	r.Get("/doctor-sessions/{id}", getSessionHandler(cfg.Sessions))
	r.Delete("/doctor-sessions/{id}", deactivateSessionHandler(cfg.Sessions))

	// Holiday overlays
	r.Post("/holidays", createHolidayHandler(cfg.Holidays))
	r.Get("/holidays", listHolidaysHandler(cfg.Holidays))
	r.Delete("/holidays/{id}", deleteHolidayHandler(cfg.Holidays))

	// Free slots
	r.Get("/availability", getAvailabilityHandler(cfg.Scheduling))

	// Appointment endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Scheduling))
	r.Get("/appointments", listAppointmentsHandler(cfg.Scheduling))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduling))
	r.Patch("/appointments/{id}", patchAppointmentHandler(cfg.Scheduling))
	r.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Scheduling))

	return r
}
