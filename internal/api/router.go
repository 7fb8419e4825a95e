package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/careops/clinicbook/internal/booking"
	"github.com/careops/clinicbook/internal/metrics"
)

type RouterConfig struct {
	Service   *booking.Service
	Collector *metrics.Collector
	Logger    *zap.Logger
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Collector))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Collector.Handler())

	r.Post("/appointments", bookHandler(cfg.Service, cfg.Collector))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Service))
	r.Post("/appointments/{id}/status", updateStatusHandler(cfg.Service))

	r.Get("/clinics/{clinicID}/doctors/{doctorID}/schedule", doctorScheduleHandler(cfg.Service))
	r.Get("/clinics/{clinicID}/rooms/{roomID}/schedule", roomScheduleHandler(cfg.Service))

	return r
}
