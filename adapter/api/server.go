// Package api exposes the entitlement gate over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/occusafe/occusafe/pkg/observability"
)

// CorrelationHeader carries the caller's correlation id in and out.
const CorrelationHeader = "X-Correlation-ID"

// Server is the HTTP API server for the entitlement gate.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *BillingHandler
	health  *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. health may be nil.
func NewServer(cfg ServerConfig, handler *BillingHandler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		handler: handler,
		health:  health,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/catalog", s.handler.GetCatalog)
	s.mux.HandleFunc("GET /api/v1/organizations/{orgID}/subscription", s.handler.GetSubscription)
	s.mux.HandleFunc("GET /api/v1/organizations/{orgID}/gate", s.handler.CheckGate)
	s.mux.HandleFunc("POST /api/v1/organizations/{orgID}/upgrade", s.handler.Upgrade)
	s.mux.HandleFunc("GET /api/v1/organizations/{orgID}/history", s.handler.GetHistory)
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestContext(s.mux)
}

// withRequestContext tags every request with request and correlation ids.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get(CorrelationHeader))
		w.Header().Set(CorrelationHeader, observability.CorrelationIDFromContext(ctx))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.DebugContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleHealth reports 503 only when a check is unhealthy; degraded still serves.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall := s.health.Check(r.Context())
	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, overall)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting gate API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gate API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes an APIError as JSON.
func writeError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Status, apiErr)
}

// APIError represents an API error.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// withMessage copies e with a specific message.
func (e *APIError) withMessage(msg string) *APIError {
	cp := *e
	cp.Message = msg
	return &cp
}

// Common API errors
var (
	ErrInvalidTier = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "InvalidTier",
		Message: "Unknown subscription tier",
	}
	ErrInvalidFeature = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "InvalidFeature",
		Message: "Unknown feature",
	}
	ErrInvalidOrganization = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "InvalidOrganizationID",
		Message: "Organization id must be a UUID",
	}
	ErrBadRequest = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BadRequest",
		Message: "Invalid request",
	}
	ErrDowngrade = &APIError{
		Status:  http.StatusConflict,
		Code:    "DowngradeNotAllowed",
		Message: "Tier changes can only move up",
	}
	ErrUnavailable = &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "PersistenceFailure",
		Message: "Subscription store unavailable, try again",
	}
	ErrInternalServer = &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "InternalError",
		Message: "Internal server error",
	}
)
