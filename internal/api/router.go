package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/consultation"
	"github.com/wardline/clinic-workflow/internal/theater"
)

type RouterConfig struct {
	Appointments  *appointment.Service
	Consultations *consultation.Service
	Theater       *theater.Service
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        zerolog.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment lifecycle
	r.Post("/appointments", scheduleAppointmentHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Appointments))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/reject", rejectAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/check-in", checkInAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/ready", readyAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/start", startConsultationHandler(cfg.Appointments))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))

	// Consultation request triage
	r.Post("/consultation-requests", submitConsultationHandler(cfg.Consultations))
	r.Get("/consultation-requests", listConsultationQueueHandler(cfg.Consultations))
	r.Get("/consultation-requests/{id}", getConsultationHandler(cfg.Consultations))
	r.Get("/patients/{id}/consultation-requests", listPatientConsultationsHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/review", startReviewHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/approve", approveConsultationHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/request-info", requestInfoConsultationHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/reject", rejectConsultationHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/schedule", scheduleConsultationHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/confirm", confirmConsultationHandler(cfg.Consultations))
	r.Post("/consultation-requests/{id}/resubmit", resubmitConsultationHandler(cfg.Consultations))

	// Theater booking two-phase lock
	r.Post("/theater-bookings", holdBookingHandler(cfg.Theater))
	r.Get("/theater-bookings/{id}", getBookingHandler(cfg.Theater))
	r.Post("/theater-bookings/{id}/confirm", confirmBookingHandler(cfg.Theater))
	r.Delete("/theater-bookings/{id}", releaseBookingHandler(cfg.Theater))
	r.Get("/theaters/{id}/bookings", listTheaterBookingsHandler(cfg.Theater))

	return r
}
