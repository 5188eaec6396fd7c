package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Secrets (gateway credentials, mail credentials) are injected the same way
// and are never persisted by this service.
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

	// Payment gateway
	GatewayBaseURL    string
	GatewayMerchantID string
	GatewayKeyID      string
	GatewaySecretKey  string
	GatewayKeyFormat  string // optional: hex | base64 | raw; empty = heuristic
	GatewayTimeout    time.Duration

	// Mail submission
	MailHost        string
	MailPort        int
	MailUsername    string
	MailPassword    string
	MailStepTimeout time.Duration
	MailSendRate    int // messages per second across all workers

	// Abuse mitigation: max donation attempts per source per window
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Notification dispatch
	DispatchWorkers   int
	DispatchQueueSize int
	RetryInterval     time.Duration
	RetryMaxAttempts  int
}

func Load() (*Config, error) {
	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: require("DATABASE_URL"),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", "https://apitest.cybersource.com"),
		GatewayMerchantID: require("GATEWAY_MERCHANT_ID"),
		GatewayKeyID:      require("GATEWAY_KEY_ID"),
		GatewaySecretKey:  require("GATEWAY_SECRET_KEY"),
		GatewayKeyFormat:  getEnv("GATEWAY_KEY_FORMAT", ""),
		GatewayTimeout:    getDuration("GATEWAY_TIMEOUT", 30*time.Second),

		MailHost:        require("MAIL_HOST"),
		MailPort:        getInt("MAIL_PORT", 465),
		MailUsername:    require("MAIL_USERNAME"),
		MailPassword:    require("MAIL_PASSWORD"),
		MailStepTimeout: getDuration("MAIL_STEP_TIMEOUT", 30*time.Second),
		MailSendRate:    getInt("MAIL_SEND_RATE", 5),

		RateLimitMax:    getInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", time.Hour),

		DispatchWorkers:   getInt("DISPATCH_WORKERS", 3),
		DispatchQueueSize: getInt("DISPATCH_QUEUE_SIZE", 1000),
		RetryInterval:     getDuration("RETRY_INTERVAL", time.Minute),
		RetryMaxAttempts:  getInt("RETRY_MAX_ATTEMPTS", 5),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
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
