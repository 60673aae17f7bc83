package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	AuthJWTSecret string

	// Booking engine
	BookingTimeout    time.Duration
	SameDaySlotBuffer time.Duration

	// Reminder scheduler
	ReminderInterval   time.Duration
	ReminderRunBudget  time.Duration
	ReminderBatchLimit int
	ReminderRetryDelay time.Duration
	ReminderSendPacing time.Duration
	ReminderRunLockTTL time.Duration

	// Messaging transport
	SMSProvider            string
	TwilioAccountSID       string
	TwilioAuthToken        string
	TwilioSMSFrom          string
	TwilioWhatsAppFrom     string
	TwilioStatusWebhookURL string

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	// Operator alerts
	EmailProvider       string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	SESFromEmail        string
	AWSRegion           string
	OpsAlertRecipients  []string
	OpsAlertsEnabled    bool
	DefaultClinicLocale string

	// Redis (scheduler run lock)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		BookingTimeout:    getEnvAsDuration("BOOKING_TIMEOUT", 5*time.Second),
		SameDaySlotBuffer: getEnvAsDuration("SAME_DAY_SLOT_BUFFER", 15*time.Minute),

		ReminderInterval:   getEnvAsDuration("REMINDER_INTERVAL", time.Hour),
		ReminderRunBudget:  getEnvAsDuration("REMINDER_RUN_BUDGET", 10*time.Minute),
		ReminderBatchLimit: getEnvAsInt("REMINDER_BATCH_LIMIT", 100),
		ReminderRetryDelay: getEnvAsDuration("REMINDER_RETRY_DELAY", 3*time.Second),
		ReminderSendPacing: getEnvAsDuration("REMINDER_SEND_PACING", 500*time.Millisecond),
		ReminderRunLockTTL: getEnvAsDuration("REMINDER_RUN_LOCK_TTL", 15*time.Minute),

		SMSProvider:            strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		TwilioAccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioSMSFrom:          getEnv("TWILIO_SMS_FROM", ""),
		TwilioWhatsAppFrom:     getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioStatusWebhookURL: getEnv("TWILIO_STATUS_WEBHOOK_URL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 0),

		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "CareDesk Scheduling"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		OpsAlertRecipients:  getEnvAsList("OPS_ALERT_RECIPIENTS"),
		OpsAlertsEnabled:    getEnvAsBool("OPS_ALERTS_ENABLED", false),
		DefaultClinicLocale: getEnv("DEFAULT_CLINIC_LOCALE", "en"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping empty items.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
