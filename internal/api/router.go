package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-booking/internal/appointment"
	"github.com/hackgods/doctor-booking/internal/availability"
)

// AppointmentService is the booking lifecycle as seen by the handlers.
type AppointmentService interface {
	CreateDraftAppointment(ctx context.Context, req appointment.DraftRequest) (*appointment.Appointment, error)
	RecordPaymentOutcome(ctx context.Context, id uuid.UUID, outcome appointment.PaymentOutcome) (*appointment.Appointment, error)
	SetDoctorDecision(ctx context.Context, id uuid.UUID, decision appointment.Decision) (*appointment.Appointment, error)
	RequestRefund(ctx context.Context, id uuid.UUID, paymentReference string) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	Today() time.Time
}

// DoctorService exposes schedules and slot generation.
type DoctorService interface {
	GetAvailability(ctx context.Context, doctorID uuid.UUID) (availability.WeeklyAvailability, error)
	SaveAvailability(ctx context.Context, doctorID uuid.UUID, week availability.WeeklyAvailability) (availability.WeeklyAvailability, error)
	BookableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Doctors      DoctorService
	Health       *HealthHandler
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(cfg.Env, cfg.Version)
	}
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Doctor endpoints
	r.Route("/doctors/{id}", func(r chi.Router) {
		r.Get("/availability", getAvailabilityHandler(cfg.Doctors))
		r.Put("/availability", putAvailabilityHandler(cfg.Doctors))
		r.Get("/slots", getSlotsHandler(cfg.Doctors))
	})

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/payment", recordPaymentHandler(cfg.Appointments))
		r.Post("/{id}/decision", decisionHandler(cfg.Appointments))
		r.Post("/{id}/refund", refundHandler(cfg.Appointments))
	})

	return r
}
