package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and GATEWAY_WEBHOOK_SECRET
// are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// SMS gateway
	GatewayBaseURL       string
	GatewayTimeout       time.Duration
	GatewayWebhookSecret string

	// Deep link embedded in message bodies
	DeepLinkBaseURL string

	// Delivery worker pool size, bounded to respect gateway rate limits
	Workers int

	// Outbound sends per second across the pool
	SendRatePerSec int

	// Inbound webhook: max requests per rolling minute per source
	WebhookRatePerMin int

	// Eligibility scan cadence
	ScanInterval time.Duration

	// Queue internals
	PollInterval  time.Duration
	SweepInterval time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int

	// Retry backoff durations: index 0 = first retry delay, etc.
	RetryBackoff []time.Duration

	// Job retention after a terminal outcome
	DoneRetention time.Duration
	DeadRetention time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	secret := os.Getenv("GATEWAY_WEBHOOK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("GATEWAY_WEBHOOK_SECRET is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.sms-gateway.example.com/v1/messages"),
		GatewayTimeout:       getDuration("GATEWAY_TIMEOUT", 5*time.Second),
		GatewayWebhookSecret: secret,

		DeepLinkBaseURL: getEnv("DEEP_LINK_BASE_URL", "https://app.getgtsd.com"),

		Workers:        getInt("WORKERS", 5),
		SendRatePerSec: getInt("SEND_RATE_PER_SEC", 10),

		WebhookRatePerMin: getInt("WEBHOOK_RATE_PER_MIN", 60),

		ScanInterval: getDuration("SCAN_INTERVAL", time.Minute),

		PollInterval:  getDuration("POLL_INTERVAL", 5*time.Second),
		SweepInterval: getDuration("SWEEP_INTERVAL", time.Hour),
		LeaseTTL:      getDuration("LEASE_TTL", 2*time.Minute),
		MaxAttempts:   getInt("MAX_ATTEMPTS", 3),

		RetryBackoff: []time.Duration{
			getDuration("RETRY_BACKOFF_1", time.Minute),
			getDuration("RETRY_BACKOFF_2", 2*time.Minute),
			getDuration("RETRY_BACKOFF_3", 4*time.Minute),
		},

		DoneRetention: getDuration("DONE_RETENTION", 24*time.Hour),
		DeadRetention: getDuration("DEAD_RETENTION", 7*24*time.Hour),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
