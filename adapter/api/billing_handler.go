package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	billingApp "github.com/occusafe/occusafe/internal/billing/application"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/occusafe/occusafe/pkg/observability"
)

// BillingService is the part of the billing application the API needs.
type BillingService interface {
	Status(ctx context.Context, orgID uuid.UUID) (billingApp.SubscriptionView, error)
	CheckAccess(ctx context.Context, orgID uuid.UUID, req domain.GateRequest) (domain.Decision, error)
	Upgrade(ctx context.Context, orgID uuid.UUID, target domain.Tier) (bool, error)
	TierHistory(ctx context.Context, orgID uuid.UUID) ([]domain.TierChange, error)
	Resolver() *domain.Resolver
}

// BillingHandler handles subscription and gate requests.
type BillingHandler struct {
	service BillingService
	logger  *slog.Logger
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(service BillingService, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{service: service, logger: logger}
}

// CatalogEntry is one tier of the catalog listing.
type CatalogEntry struct {
	domain.TierInfo
	Features []domain.Feature `json:"features"`
}

// UpgradeRequest is the body of POST .../upgrade.
type UpgradeRequest struct {
	Tier string `json:"tier"`
}

// UpgradeResponse reports whether the requested tier is now in effect.
type UpgradeResponse struct {
	Success bool        `json:"success"`
	Tier    domain.Tier `json:"tier,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func failedUpgrade(apiErr *APIError, message string) UpgradeResponse {
	return UpgradeResponse{Code: apiErr.Code, Error: message}
}

// GetCatalog handles GET /api/v1/catalog
func (h *BillingHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Resolver().Catalog()
	tiers := domain.AllTiers()
	entries := make([]CatalogEntry, 0, len(tiers))
	for _, tier := range tiers {
		entries = append(entries, CatalogEntry{TierInfo: tier.Info(), Features: catalog.FeaturesForTier(tier)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": entries})
}

// GetSubscription handles GET /api/v1/organizations/{orgID}/subscription
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	orgID, ctx, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Status(ctx, orgID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CheckGate handles GET /api/v1/organizations/{orgID}/gate?feature=..&requiredTier=..
func (h *BillingHandler) CheckGate(w http.ResponseWriter, r *http.Request) {
	orgID, ctx, ok := h.organizationID(w, r)
	if !ok {
		return
	}

	var req domain.GateRequest
	q := r.URL.Query()
	if raw := q.Get("feature"); raw != "" {
		feature, err := domain.ParseFeatureKey(raw)
		if err != nil {
			writeError(w, ErrInvalidFeature.withMessage(err.Error()))
			return
		}
		req.Feature = &feature
	}
	if raw := q.Get("requiredTier"); raw != "" {
		tier, err := domain.ParseTier(raw)
		if err != nil {
			writeError(w, ErrInvalidTier.withMessage(err.Error()))
			return
		}
		req.RequiredTier = &tier
	}

	decision, err := h.service.CheckAccess(ctx, orgID, req)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// Upgrade handles POST /api/v1/organizations/{orgID}/upgrade
func (h *BillingHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	orgID, ctx, ok := h.organizationID(w, r)
	if !ok {
		return
	}

	var body UpgradeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, ErrBadRequest.withMessage("body must be JSON like {\"tier\":\"premium\"}"))
		return
	}
	target, err := domain.ParseTier(body.Tier)
	if err != nil {
		writeError(w, ErrInvalidTier.withMessage(err.Error()))
		return
	}

	success, err := h.service.Upgrade(ctx, orgID, target)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, UpgradeResponse{Success: success, Tier: target})
	case errors.Is(err, domain.ErrDowngradeNotAllowed):
		writeJSON(w, ErrDowngrade.Status, failedUpgrade(ErrDowngrade, err.Error()))
	case errors.Is(err, domain.ErrPersistenceFailure):
		h.logger.WarnContext(ctx, "upgrade failed", "organization_id", orgID, "error", err)
		writeJSON(w, ErrUnavailable.Status, failedUpgrade(ErrUnavailable, ErrUnavailable.Message))
	default:
		h.writeServiceError(ctx, w, err)
	}
}

// GetHistory handles GET /api/v1/organizations/{orgID}/history
func (h *BillingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	orgID, ctx, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	changes, err := h.service.TierHistory(ctx, orgID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	if changes == nil {
		changes = []domain.TierChange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

// organizationID parses the path id and tags the request context with it.
func (h *BillingHandler) organizationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, context.Context, bool) {
	orgID, err := uuid.Parse(r.PathValue("orgID"))
	if err != nil {
		writeError(w, ErrInvalidOrganization)
		return uuid.Nil, nil, false
	}
	return orgID, observability.WithOrganizationID(r.Context(), orgID.String()), true
}

func (h *BillingHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPersistenceFailure):
		h.logger.WarnContext(ctx, "subscription store unavailable", "error", err)
		writeError(w, ErrUnavailable)
	case errors.Is(err, domain.ErrInvalidTier):
		writeError(w, ErrInvalidTier.withMessage(err.Error()))
	case errors.Is(err, domain.ErrInvalidFeature):
		writeError(w, ErrInvalidFeature.withMessage(err.Error()))
	default:
		h.logger.ErrorContext(ctx, "request failed", "error", err)
		writeError(w, ErrInternalServer)
	}
}
