package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	TemporalAddress   string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	// ServiceName tags log lines and metrics with the binary that
	// produced them (sandbox-api, worker).
	ServiceName string

	// KEKHex is the hex-encoded 32-byte master key that seals webhook
	// signing secrets at rest.
	KEKHex string
	// SessionSecret signs dashboard session tokens.
	SessionSecret string
	SessionIssuer string
	// WebhookDefaultSecret backs sandbox webhook flows that reference no
	// registered endpoint. Optional.
	WebhookDefaultSecret string
	// TimestampTolerance is the accepted clock skew for signed webhook
	// timestamps, on both sides of now.
	TimestampTolerance time.Duration
	// HashConcurrency caps concurrent argon2 hashing operations. Each
	// operation pins 64 MiB.
	HashConcurrency int64
	// AuditLogRetentionDays bounds how long audit log rows are kept
	// before the retention cron deletes them.
	AuditLogRetentionDays int

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string
}

// Load reads configuration from the environment, folding in a local
// .env file first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:          getEnv("SANDBOX_DATABASE_URL", ""),
		TemporalAddress:      getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:       getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:    getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ServiceName:          getEnv("SERVICE_NAME", ""),
		KEKHex:               getEnv("SANDBOX_KEK", ""),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionIssuer:        getEnv("SESSION_ISSUER", "paysandbox"),
		WebhookDefaultSecret: getEnv("SANDBOX_WEBHOOK_SECRET", ""),

		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
	}

	toleranceSecs, err := getEnvInt("WEBHOOK_TIMESTAMP_TOLERANCE", 300)
	if err != nil {
		return nil, err
	}
	cfg.TimestampTolerance = time.Duration(toleranceSecs) * time.Second

	hashConcurrency, err := getEnvInt("HASH_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	cfg.HashConcurrency = int64(hashConcurrency)

	retentionDays, err := getEnvInt("AUDIT_LOG_RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}
	cfg.AuditLogRetentionDays = retentionDays

	return cfg, nil
}

// Validate checks that every setting the given service needs is present.
// All missing variables are reported in one error.
func (c *Config) Validate(service string) error {
	var missing []string

	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require(c.DatabaseURL, "SANDBOX_DATABASE_URL")
	require(c.TemporalAddress, "TEMPORAL_ADDRESS")
	require(c.KEKHex, "SANDBOX_KEK")

	switch service {
	case "sandbox-api":
		require(c.HTTPListenAddr, "HTTP_LISTEN_ADDR")
		require(c.SessionSecret, "SESSION_SECRET")
	case "worker":
		require(c.MetricsListenAddr, "METRICS_LISTEN_ADDR")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set or both be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
