package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"POSTGRES_URL", "KAFKA_BROKERS", "COOLDOWN_SECONDS", "ADMIN_PASSWORD", "OUTBOX_POLL_INTERVAL", "DLQ_POLL_INTERVAL", "DLQ_MAX_RETRIES", "DLQ_BASE_DELAY"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Empty(t, cfg.PostgresURL)
	require.False(t, cfg.UsesKafka())
	require.Equal(t, 5*time.Second, cfg.Cooldown)
	require.Equal(t, DefaultAdminPassword, cfg.AdminPassword)
	require.Equal(t, 12*time.Hour, cfg.AdminSessionTTL)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 30*time.Second, cfg.DLQPollInterval)
	require.Equal(t, 5, cfg.DLQMaxRetries)
	require.Equal(t, time.Minute, cfg.DLQBaseDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("COOLDOWN_SECONDS", "10")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg := Load()
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.UsesKafka())
	require.Equal(t, 10*time.Second, cfg.Cooldown)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
}

func TestLoadClientDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRAYER_BACKEND_URL", "http://localhost:8080/")
	t.Setenv("PRAYER_RECONNECT_DELAY", "750ms")

	cfg, err := LoadClient("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.BackendURL)
	require.Equal(t, 5*time.Second, cfg.Cooldown())
	require.Equal(t, 750*time.Millisecond, cfg.ReconnectDelay)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, 300*time.Millisecond, cfg.DemoDelay)
	require.NotEmpty(t, cfg.StatePath)
}

func TestLoadClientFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://api.example\ncooldown_seconds: 8\nstate_path: /tmp/state.db\n"), 0o600))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	require.Equal(t, "http://api.example", cfg.BackendURL)
	require.Equal(t, 8*time.Second, cfg.Cooldown())
	require.Equal(t, "/tmp/state.db", cfg.StatePath)
}

func TestLoadClientMissingExplicitFile(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
