package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	VisionBaseURL    string
	ReasoningBaseURL string
	VisionTimeout    time.Duration

	ConfidenceThreshold int
	AuditProbability    float64
	AuditSeed           string
	JuryQuorum          int
	QueueLimit          int

	EnableVerificationConsumer bool
	EnableOutboxRelay          bool
	EnableAuditSweep           bool
	EnableReviewReannounce     bool
}

func Load() (Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "taskproof"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		VisionBaseURL:    os.Getenv("VISION_BASE_URL"),
		ReasoningBaseURL: os.Getenv("REASONING_BASE_URL"),
		VisionTimeout:    envDuration("VISION_TIMEOUT", 20*time.Second),

		ConfidenceThreshold: envInt("CONFIDENCE_THRESHOLD", 80),
		AuditProbability:    envFloat("AUDIT_PROBABILITY", 0.2),
		AuditSeed:           envString("AUDIT_SEED", "taskproof-audit-v1"),
		JuryQuorum:          envInt("JURY_QUORUM", 3),
		QueueLimit:          envInt("QUEUE_LIMIT", 20),

		EnableVerificationConsumer: envBool("ENABLE_VERIFICATION_CONSUMER", true),
		EnableOutboxRelay:          envBool("ENABLE_OUTBOX_RELAY", true),
		EnableAuditSweep:           envBool("ENABLE_AUDIT_SWEEP", true),
		EnableReviewReannounce:     envBool("ENABLE_REVIEW_REANNOUNCE", true),
	}, nil
}

func envString(name string, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
