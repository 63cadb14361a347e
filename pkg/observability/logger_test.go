package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := ProductionLogConfig()
	cfg.Output = &buf
	cfg.AddSource = false
	logger := NewLogger(cfg)

	ctx := WithOrganizationID(WithCorrelationID(context.Background(), "corr-1"), "org-7")
	logger.InfoContext(ctx, "tier changed", "to", "premium")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tier changed", rec["msg"])
	assert.Equal(t, "occusafe", rec["service"])
	assert.Equal(t, "corr-1", rec[CorrelationIDKey])
	assert.Equal(t, "org-7", rec[OrganizationIDKey])
	assert.Equal(t, "premium", rec["to"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLogConfig()
	cfg.Output = &buf
	cfg.Level = "warn"
	logger := NewLogger(cfg).With("component", "test")

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=test")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestConfigForEnv(t *testing.T) {
	assert.Equal(t, LogFormatJSON, ConfigForEnv("production", "").Format)
	cfg := ConfigForEnv("development", "debug")
	assert.Equal(t, LogFormatText, cfg.Format)
	assert.Equal(t, "debug", cfg.Level)
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "")
	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))

	ctx = NewRequestContext(context.Background(), "parent")
	assert.Equal(t, "parent", CorrelationIDFromContext(ctx))
	assert.Empty(t, OrganizationIDFromContext(ctx))
}
