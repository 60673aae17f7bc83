package main

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/config"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/internal/notify"
	"github.com/caredesk/clinic-scheduling/internal/patient"
	"github.com/caredesk/clinic-scheduling/internal/redislock"
	"github.com/caredesk/clinic-scheduling/internal/reminder"
	"github.com/caredesk/clinic-scheduling/internal/runlog"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("reminder worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	reminders := reminder.NewStore(pool).WithBatchLimit(cfg.ReminderBatchLimit)
	runs := runlog.NewStore(pool)
	messages := messaging.NewStore(pool)
	patients := patient.NewStore(pool)
	clinics := clinic.NewStore(pool)

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

	email, emailProvider, emailReason := notify.BuildEmailSender(ctx, notify.EmailSelectionConfig{
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

	scheduler := reminder.NewScheduler(reminders, runs, sender, logger).
		WithAlerts(notifier).
		WithDelays(cfg.ReminderRetryDelay, cfg.ReminderSendPacing).
		WithBudget(cfg.ReminderRunBudget)

	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, running without the run lock", "error", err)
		} else {
			scheduler.WithLock(redislock.New(client, cfg.ReminderRunLockTTL, logger))
		}
	} else {
		logger.Info("no redis configured, runs are serialized only within this instance")
	}

	// A crash mid-run leaves its ledger row RUNNING forever; close those
	// before starting the cadence.
	cutoff := 2 * cfg.ReminderRunBudget
	if closed, err := runs.CloseAbandoned(ctx, cutoff); err != nil {
		logger.Warn("failed to close abandoned runs", "error", err)
	} else if closed > 0 {
		logger.Info("closed abandoned runs", "count", closed)
	}

	go runLoop(ctx, scheduler, cfg.ReminderInterval, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminder worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}

// runLoop fires one run immediately, then one per tick until ctx ends.
func runLoop(ctx context.Context, scheduler *reminder.Scheduler, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(ctx, scheduler, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, scheduler, logger)
		}
	}
}

func runOnce(ctx context.Context, scheduler *reminder.Scheduler, logger *logging.Logger) {
	rec, err := scheduler.Run(ctx, reminder.Options{Trigger: runlog.TriggerScheduled})
	if err != nil {
		if errors.Is(err, reminder.ErrAlreadyRunning) {
			logger.Info("reminder run skipped, another instance holds the lock")
			return
		}
		logger.Error("reminder run failed", "error", err)
		return
	}
	logger.Info("reminder run finished",
		"run_id", rec.ID,
		"status", rec.Status,
		"checked", rec.Counts.Checked,
		"sent", rec.Counts.Sent,
		"failed", rec.Counts.Failed,
	)
}
