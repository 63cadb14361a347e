package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats outbox.Stats

func (f fixedStats) Stats() outbox.Stats { return outbox.Stats(f) }

func TestHealthz_ReportsRelayStats(t *testing.T) {
	mux := healthMux(fixedStats{Running: true, Published: 7, Dead: 1}, observability.NewHealthRegistry())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(7), body["published"])
	assert.Equal(t, float64(1), body["dead"])
}

func TestReadyz(t *testing.T) {
	health := observability.NewHealthRegistry()
	mux := healthMux(fixedStats{}, health)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, func(context.Context) error {
		return errors.New("connection refused")
	}))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
