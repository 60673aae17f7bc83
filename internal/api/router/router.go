// Package router assembles the HTTP surface: public health/metrics/webhook
// endpoints plus the JWT-scoped /api/v1 tree.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/caredesk/clinic-scheduling/internal/http/handlers"
	httpmiddleware "github.com/caredesk/clinic-scheduling/internal/http/middleware"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Health       *handlers.HealthHandler
	Appointments *handlers.AppointmentHandler
	Slots        *handlers.SlotHandler
	Waitlist     *handlers.WaitlistHandler
	Patients     *handlers.PatientHandler
	Clinics      *handlers.ClinicHandler
	Reminders    *handlers.ReminderHandler

	// TwilioStatusWebhook receives delivery-status callbacks; optional.
	TwilioStatusWebhook http.Handler
	// MetricsHandler serves Prometheus scrapes; optional.
	MetricsHandler http.Handler

	// AuthSecret verifies the caller-scope JWTs on /api/v1.
	AuthSecret         string
	CORSAllowedOrigins []string

	// RedisClient enables per-caller rate limiting when set.
	RedisClient        *redis.Client
	RateLimitPerMinute int
}

// New creates a new chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Health.Check)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.TwilioStatusWebhook != nil {
			public.Post("/webhooks/twilio/status", cfg.TwilioStatusWebhook.ServeHTTP)
		}
	})

	// Versioned API, caller scope required
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.AuthScope(cfg.AuthSecret))
		if cfg.RedisClient != nil && cfg.RateLimitPerMinute > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RedisClient, cfg.RateLimitPerMinute, time.Minute))
		}

		api.Route("/appointments", func(r chi.Router) {
			r.Post("/", cfg.Appointments.Create)
			r.Get("/{appointmentID}", cfg.Appointments.Get)
			r.Get("/{appointmentID}/messages", cfg.Appointments.Messages)
			r.Post("/{appointmentID}/transition", cfg.Appointments.Transition)
			r.Post("/{appointmentID}/cancel", cfg.Appointments.Cancel)
		})

		api.Route("/patients", func(r chi.Router) {
			r.Post("/", cfg.Patients.Register)
			r.Get("/lookup", cfg.Patients.Lookup)
			r.Get("/{patientID}", cfg.Patients.Get)
			r.Patch("/{patientID}/preferences", cfg.Patients.UpdatePreferences)
			r.Get("/{patientID}/appointments", cfg.Appointments.ListForPatient)
		})

		api.Route("/clinics", func(r chi.Router) {
			r.Get("/", cfg.Clinics.List)
			r.Get("/{clinicID}", cfg.Clinics.Get)
			r.Get("/{clinicID}/staff", cfg.Clinics.ListStaff)
			r.Get("/{clinicID}/slots", cfg.Slots.FindAvailable)
			r.Get("/{clinicID}/appointments", cfg.Appointments.ListForClinicDay)
			r.Get("/{clinicID}/waitlist", cfg.Waitlist.ListForClinic)
			r.Post("/{clinicID}/waitlist/sweep", cfg.Waitlist.Sweep)
		})

		api.Post("/waitlist", cfg.Waitlist.Add)

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/clinics", cfg.Clinics.Create)
			admin.Post("/clinics/{clinicID}/staff", cfg.Clinics.CreateStaff)
			admin.Post("/clinics/{clinicID}/slots", cfg.Clinics.ProvisionSlots)
			if cfg.Reminders != nil {
				admin.Post("/reminder-runs", cfg.Reminders.TriggerRun)
				admin.Get("/reminder-runs", cfg.Reminders.ListRuns)
				admin.Get("/reminder-runs/{runID}", cfg.Reminders.GetRun)
			}
		})
	})

	return r
}
