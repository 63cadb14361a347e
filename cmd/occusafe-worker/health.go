package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	"github.com/occusafe/occusafe/pkg/observability"
)

type statsSource interface {
	Stats() outbox.Stats
}

// healthMux serves /healthz (relay stats) and /readyz (dependency checks).
func healthMux(processor statsSource, health *observability.HealthRegistry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"running":           stats.Running,
			"published":         stats.Published,
			"failed":            stats.Failed,
			"dead":              stats.Dead,
			"lag_seconds":       stats.LagSeconds,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		result := health.Check(checkCtx)
		status := http.StatusOK
		if result.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, result)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
