// Package config centralises configuration parsing for the prayer service and its client.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"example.com/prayer/internal/catalog"
)

// DefaultAdminPassword is the development password used when neither ADMIN_PASSWORD nor
// ADMIN_PASSWORD_HASH is set.
const DefaultAdminPassword = "vitanova2026admin"

// Config captures runtime configuration values for the API server.
type Config struct {
	HTTPAddress        string
	PostgresURL        string // empty selects the in-memory store
	KafkaBrokers       []string
	KafkaGroupPrefix   string
	SchemaRegistryURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	DLQPollInterval    time.Duration
	DLQMaxRetries      int
	DLQBaseDelay       time.Duration
	Cooldown           time.Duration
	AdminPassword      string
	AdminPasswordHash  string
	JWTSecret          string
	JWTIssuer          string
	AdminSessionTTL    time.Duration
	CORSOrigin         string
	StreamKeepalive    time.Duration
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	return Config{
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8080"),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaGroupPrefix:   getEnv("KAFKA_GROUP_PREFIX", "prayer-api"),
		SchemaRegistryURL:  getEnv("SCHEMA_REGISTRY_URL", ""),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		DLQPollInterval:    getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:      getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:       getDurationEnv("DLQ_BASE_DELAY", time.Minute),
		Cooldown:           time.Duration(getIntEnv("COOLDOWN_SECONDS", catalog.DefaultCooldownSeconds)) * time.Second,
		AdminPassword:      getEnv("ADMIN_PASSWORD", DefaultAdminPassword),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "prayer.admin"),
		AdminSessionTTL:    getDurationEnv("ADMIN_SESSION_TTL", 12*time.Hour),
		CORSOrigin:         getEnv("CORS_ORIGIN", "*"),
		StreamKeepalive:    getDurationEnv("STREAM_KEEPALIVE", 15*time.Second),
	}
}

// UsesKafka reports whether change events travel through a broker.
func (c Config) UsesKafka() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
