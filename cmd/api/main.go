package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/caredesk/clinic-scheduling/internal/api/router"
	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/clinic"
	appconfig "github.com/caredesk/clinic-scheduling/internal/config"
	"github.com/caredesk/clinic-scheduling/internal/http/handlers"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/internal/notify"
	"github.com/caredesk/clinic-scheduling/internal/observability/metrics"
	"github.com/caredesk/clinic-scheduling/internal/patient"
	"github.com/caredesk/clinic-scheduling/internal/redislock"
	"github.com/caredesk/clinic-scheduling/internal/reminder"
	"github.com/caredesk/clinic-scheduling/internal/runlog"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/internal/waitlist"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

func main() {
	// Load .env if present; deployed environments set real env vars.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Initialize stores
	slots := slot.NewStore(pool)
	clinics := clinic.NewStore(pool)
	patients := patient.NewStore(pool)
	appts := appointment.NewStore(pool)
	entries := waitlist.NewStore(pool)
	runs := runlog.NewStore(pool)
	reminders := reminder.NewStore(pool).WithBatchLimit(cfg.ReminderBatchLimit)
	messages := messaging.NewStore(pool)

	m := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)

	// Outbound SMS/WhatsApp, with every send recorded in outbound_messages.
	sender, provider, reason := messaging.BuildSender(messaging.ProviderSelectionConfig{
		Preference:         cfg.SMSProvider,
		TwilioAccountSID:   cfg.TwilioAccountSID,
		TwilioAuthToken:    cfg.TwilioAuthToken,
		TwilioSMSFrom:      cfg.TwilioSMSFrom,
		TwilioWhatsAppFrom: cfg.TwilioWhatsAppFrom,
	}, logger)
	if sender == nil {
		logger.Error("sms provider unavailable", "reason", reason)
		os.Exit(1)
	}
	logger.Info("sms provider selected", "provider", provider, "reason", reason)
	sender = messaging.WrapWithPersistence(sender, messages, logger)

	// Operator alert email
	email, emailProvider, emailReason := notify.BuildEmailSender(context.Background(), notify.EmailSelectionConfig{
		Preference:        cfg.EmailProvider,
		FromName:          cfg.SendGridFromName,
		SendGridAPIKey:    cfg.SendGridAPIKey,
		SendGridFromEmail: cfg.SendGridFromEmail,
		SESFromEmail:      cfg.SESFromEmail,
		AWSRegion:         cfg.AWSRegion,
	}, logger)
	if email == nil {
		logger.Error("email provider unavailable", "reason", emailReason)
		os.Exit(1)
	}
	logger.Info("email provider selected", "provider", emailProvider, "reason", emailReason)
	notifier := notify.NewService(sender, email, patients, clinics, notify.OpsConfig{
		Recipients: cfg.OpsAlertRecipients,
		Enabled:    cfg.OpsAlertsEnabled,
	}, logger)

	// Redis backs API rate limiting and the reminder run lock. Optional:
	// without it the API still serves, just without those two guards.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without rate limits and run locks", "error", err)
			redisClient = nil
		}
	}

	// The matcher books through the service, and the service offers freed
	// slots back to the matcher, so the filler is wired after both exist.
	svc := appointment.NewService(pool, appts, slots, clinics, logger).
		WithMetrics(m).
		WithTimeout(cfg.BookingTimeout)
	matcher := waitlist.NewMatcher(entries, slots, appts, svc, logger).
		WithNotifier(notifier).
		WithMetrics(m)
	svc.WithFiller(matcher)

	// Reminder scheduler for manual runs via the admin API. The scheduled
	// cadence lives in cmd/reminder-worker; both share the run lock.
	scheduler := reminder.NewScheduler(reminders, runs, sender, logger).
		WithAlerts(notifier).
		WithMetrics(m).
		WithDelays(cfg.ReminderRetryDelay, cfg.ReminderSendPacing).
		WithBudget(cfg.ReminderRunBudget)
	if redisClient != nil {
		scheduler.WithLock(redislock.New(redisClient, cfg.ReminderRunLockTTL, logger))
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:              logger,
		Health:              handlers.NewHealthHandler(pool),
		Appointments:        handlers.NewAppointmentHandler(svc, logger).WithMessageLog(messages),
		Slots:               handlers.NewSlotHandler(slots, clinics, cfg.SameDaySlotBuffer, logger),
		Waitlist:            handlers.NewWaitlistHandler(entries, matcher, logger),
		Patients:            handlers.NewPatientHandler(patients, logger),
		Clinics:             handlers.NewClinicHandler(clinics, slots, logger).WithDefaultLanguage(cfg.DefaultClinicLocale),
		Reminders:           handlers.NewReminderHandler(scheduler, runs, logger),
		TwilioStatusWebhook: messaging.NewStatusWebhookHandler(messages, cfg.TwilioAuthToken, cfg.TwilioStatusWebhookURL, logger),
		MetricsHandler:      promhttp.Handler(),
		AuthSecret:          cfg.AuthJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RedisClient:         redisClient,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
