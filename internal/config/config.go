package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Messenger transports.
const (
	MessengerTwilio  = "twilio"
	MessengerGateway = "gateway"
	MessengerSQS     = "sqs"
	MessengerLog     = "log"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port      int
	LogLevel  string
	LogFile   string
	LogMaxAge time.Duration

	// Store
	StoreBackend  string
	DatabaseURL   string
	MigrationsDir string // empty uses the embedded migrations

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Messaging
	Messenger            string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioPhoneNumber    string
	TwilioWhatsAppNumber string
	SMSGatewayURL        string
	ReminderQueueURL     string
	AWSRegion            string
	DefaultCountryCode   string

	// Scheduling
	ScanSchedule       string
	ReminderSchedule   string
	Timezone           string
	ChangePollInterval time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:      getEnvInt("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogMaxAge: getEnvDuration("LOG_MAX_AGE", 7*24*time.Hour),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendSupabase)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MigrationsDir: getEnv("MIGRATIONS_DIR", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		Messenger:            strings.ToLower(getEnv("MESSENGER", MessengerLog)),
		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:    getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioWhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		SMSGatewayURL:        getEnv("SMS_GATEWAY_URL", ""),
		ReminderQueueURL:     getEnv("REMINDER_QUEUE_URL", ""),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		DefaultCountryCode:   getEnv("DEFAULT_COUNTRY_CODE", "55"),

		ScanSchedule:       getEnv("SCAN_SCHEDULE", "0 * * * *"),
		ReminderSchedule:   getEnv("REMINDER_SCHEDULE", "0 9 * * *"),
		Timezone:           getEnv("TIMEZONE", "America/Sao_Paulo"),
		ChangePollInterval: getEnvDuration("CHANGE_POLL_INTERVAL", 5*time.Second),
	}
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("STORE_BACKEND=supabase requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.Messenger {
	case MessengerTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
			return fmt.Errorf("MESSENGER=twilio requires TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN")
		}
	case MessengerGateway:
		if c.SMSGatewayURL == "" {
			return fmt.Errorf("MESSENGER=gateway requires SMS_GATEWAY_URL")
		}
	case MessengerSQS:
		if c.ReminderQueueURL == "" {
			return fmt.Errorf("MESSENGER=sqs requires REMINDER_QUEUE_URL")
		}
	case MessengerLog:
	default:
		return fmt.Errorf("unknown MESSENGER %q", c.Messenger)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
