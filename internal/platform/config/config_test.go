package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.RecipientTimeout)
	assert.Equal(t, "doccontrol.events", cfg.Kafka.EventsTopic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.UsesDefaultSigningKey())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DOCCONTROL_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("DISPATCH_WORKERS", "3")
	t.Setenv("DISPATCH_RECIPIENT_TIMEOUT", "750ms")
	t.Setenv("JWT_SIGNING_KEY", "prod-key")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
	assert.Equal(t, 750*time.Millisecond, cfg.Dispatch.RecipientTimeout)
	assert.False(t, cfg.UsesDefaultSigningKey())
}

func TestFromEnv_RejectsInvalidValues(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "many")
	t.Setenv("LOCK_TTL", "forever")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISPATCH_WORKERS")
	assert.Contains(t, err.Error(), "LOCK_TTL")
}

func TestFromEnv_RejectsZeroWorkers(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "0")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestLoad_ReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nDOCCONTROL_ADDR=:7000\n"), 0o600))
	t.Setenv("DOCCONTROL_ADDR", ":6000")
	t.Cleanup(func() { _ = os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":6000", cfg.Server.Addr)
}
