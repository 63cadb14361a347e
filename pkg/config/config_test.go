package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedVars = []string{
	"APP_ENV", "LOG_LEVEL", "OCCUSAFE_ORGANIZATION_ID",
	"DATABASE_URL", "SQLITE_PATH", "DB_MAX_CONNS",
	"REDIS_URL", "SUBSCRIPTION_CACHE_TTL", "RABBITMQ_URL",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES",
	"OUTBOX_RETENTION", "OUTBOX_CLEANUP_INTERVAL", "OUTBOX_PROCESSOR_ENABLED",
	"BREAKER_MAX_FAILURES", "BREAKER_OPEN_TIMEOUT",
	"HTTP_ADDR", "WORKER_HEALTH_ADDR", "MCP_ADDR", "MCP_AUTH_TOKEN",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range managedVars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cfg.OrganizationID)
	assert.True(t, cfg.UsesSQLite())
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 5*time.Minute, cfg.SubscriptionCacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://occusafe@db:5432/occusafe")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SUBSCRIPTION_CACHE_TTL", "90s")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")
	t.Setenv("BREAKER_MAX_FAILURES", "0")
	t.Setenv("OUTBOX_MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.UsesSQLite())
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.SubscriptionCacheTTL)
	assert.False(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, uint32(1), cfg.BreakerMaxFailures)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"OCCUSAFE_ORGANIZATION_ID": "acme",
		"OUTBOX_BATCH_SIZE":        "-1",
		"OUTBOX_POLL_INTERVAL":     "0s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
