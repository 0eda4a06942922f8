package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Auth provider
	ProviderSignupURL string // Required: full signup endpoint, e.g. https://xyz.supabase.co/auth/v1/signup
	ProviderAPIKey    string // Required: project anon key sent on every signup
	RedirectTo        string // Optional: redirect target passed to the provider on signup

	// Mailbox service
	MailboxBaseURL string   // Optional: disposable-inbox service base URL (default: http://localhost:8025)
	MailboxDomains []string // Optional: comma-separated address domains (default: inbox.test)

	// Worker pacing
	PasswordLength int           // Optional: generated password length (default: 16)
	PollTimeout    time.Duration // Optional: verification email wait bound (default: 90s)
	PollInterval   time.Duration // Optional: delay between mailbox listings (default: 3s)
	VerifyAttempts int           // Optional: verification fetch attempts (default: 3)
	VerifyBackoff  time.Duration // Optional: delay between verification fetches (default: 2s)
	LaunchDelay    time.Duration // Optional: delay between worker launches in a batch (default: 5s)
	MaxBatch       int           // Optional: largest batch one request may schedule (default: 50)

	CORSOrigins []string // Optional: allowed CORS origins (default: *)

	DatabaseFile        string        // Optional: path to SQLite database file (default: ./signup.db)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		ProviderSignupURL: os.Getenv("SIGNUP_PROVIDER_URL"),
		ProviderAPIKey:    os.Getenv("SIGNUP_PROVIDER_API_KEY"),
		RedirectTo:        os.Getenv("SIGNUP_REDIRECT_TO"),

		MailboxBaseURL: getEnvOrDefault("SIGNUP_MAILBOX_URL", "http://localhost:8025"),
		MailboxDomains: splitAndTrim(getEnvOrDefault("SIGNUP_MAILBOX_DOMAINS", "inbox.test")),

		PasswordLength: getEnvIntOrDefault("SIGNUP_PASSWORD_LENGTH", 16),
		PollTimeout:    getEnvDurationOrDefault("SIGNUP_POLL_TIMEOUT", 90*time.Second),
		PollInterval:   getEnvDurationOrDefault("SIGNUP_POLL_INTERVAL", 3*time.Second),
		VerifyAttempts: getEnvIntOrDefault("SIGNUP_VERIFY_ATTEMPTS", 3),
		VerifyBackoff:  getEnvDurationOrDefault("SIGNUP_VERIFY_BACKOFF", 2*time.Second),
		LaunchDelay:    getEnvDurationOrDefault("SIGNUP_LAUNCH_DELAY", 5*time.Second),
		MaxBatch:       getEnvIntOrDefault("SIGNUP_MAX_BATCH", 50),

		CORSOrigins: splitAndTrim(getEnvOrDefault("SIGNUP_CORS_ORIGINS", "*")),

		DatabaseFile:        getEnvOrDefault("SIGNUP_DATABASE_FILE", "signup.db"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func splitAndTrim(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
