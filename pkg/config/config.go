package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	// OrganizationID is the default tenant for CLI commands.
	OrganizationID string

	// Database. Empty DatabaseURL selects SQLite at SQLitePath.
	DatabaseURL string
	SQLitePath  string
	DBMaxConns  int

	// Redis. Empty disables the subscription cache.
	RedisURL             string
	SubscriptionCacheTTL time.Duration

	// RabbitMQ. Empty makes the worker deliver in-process.
	RabbitMQURL string

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxRetention        time.Duration
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Circuit breaker around the subscription store
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	// Servers
	HTTPAddr         string
	WorkerHealthAddr string
	MCPAddr          string
	MCPAuthToken     string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OrganizationID: getEnv("OCCUSAFE_ORGANIZATION_ID", "00000000-0000-0000-0000-000000000001"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", ""),
		DBMaxConns:  getIntEnv("DB_MAX_CONNS", 10),

		RedisURL:             getEnv("REDIS_URL", ""),
		SubscriptionCacheTTL: getDurationEnv("SUBSCRIPTION_CACHE_TTL", 5*time.Minute),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetention:        getDurationEnv("OUTBOX_RETENTION", 14*24*time.Hour),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		BreakerMaxFailures: uint32(max(getIntEnv("BREAKER_MAX_FAILURES", 5), 1)),
		BreakerOpenTimeout: getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		HTTPAddr:         getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		MCPAddr:          getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken:     getEnv("MCP_AUTH_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.OrganizationID != "" {
		if _, err := uuid.Parse(c.OrganizationID); err != nil {
			return fmt.Errorf("OCCUSAFE_ORGANIZATION_ID: %w", err)
		}
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", c.OutboxPollInterval)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesSQLite reports whether the local file store is selected.
func (c *Config) UsesSQLite() bool {
	return c.DatabaseURL == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
