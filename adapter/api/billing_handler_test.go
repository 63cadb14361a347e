package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	billingApp "github.com/occusafe/occusafe/internal/billing/application"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBilling keeps one tier per organization in memory.
type stubBilling struct {
	resolver *domain.Resolver
	tiers    map[uuid.UUID]domain.Tier
	history  []domain.TierChange
	err      error
	lastCtx  context.Context
}

func newStubBilling() *stubBilling {
	return &stubBilling{
		resolver: domain.NewResolver(domain.DefaultCatalog()),
		tiers:    map[uuid.UUID]domain.Tier{},
	}
}

func (s *stubBilling) tier(orgID uuid.UUID) domain.Tier {
	if t, ok := s.tiers[orgID]; ok {
		return t
	}
	return domain.TierBasic
}

func (s *stubBilling) Status(_ context.Context, orgID uuid.UUID) (billingApp.SubscriptionView, error) {
	if s.err != nil {
		return billingApp.SubscriptionView{}, s.err
	}
	t := s.tier(orgID)
	return billingApp.SubscriptionView{
		OrganizationID: orgID,
		Tier:           t,
		Status:         domain.StatusActive,
		Features:       s.resolver.Catalog().FeaturesForTier(t),
	}, nil
}

func (s *stubBilling) CheckAccess(ctx context.Context, orgID uuid.UUID, req domain.GateRequest) (domain.Decision, error) {
	s.lastCtx = ctx
	if s.err != nil {
		return domain.Decision{}, s.err
	}
	return s.resolver.ResolveGate(s.tier(orgID), req), nil
}

func (s *stubBilling) Upgrade(_ context.Context, orgID uuid.UUID, target domain.Tier) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if target.Rank() < s.tier(orgID).Rank() {
		return false, domain.ErrDowngradeNotAllowed
	}
	s.tiers[orgID] = target
	return true, nil
}

func (s *stubBilling) TierHistory(context.Context, uuid.UUID) ([]domain.TierChange, error) {
	return s.history, s.err
}

func (s *stubBilling) Resolver() *domain.Resolver { return s.resolver }

func newTestServer(svc BillingService) http.Handler {
	return NewServer(DefaultServerConfig(), NewBillingHandler(svc, nil), nil, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGate(t *testing.T) {
	svc := newStubBilling()
	h := newTestServer(svc)
	org := uuid.New()
	base := fmt.Sprintf("/api/v1/organizations/%s/gate", org)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"feature granted", "?feature=simple_charts", http.StatusOK, `{"hasAccess":true}`},
		{"feature denied", "?feature=trend_analysis", http.StatusOK, `{"hasAccess":false,"requiredTier":"premium"}`},
		{"tier denied", "?requiredTier=enterprise", http.StatusOK, `{"hasAccess":false,"requiredTier":"enterprise"}`},
		{"feature wins over tier", "?feature=simple_charts&requiredTier=enterprise", http.StatusOK, `{"hasAccess":true}`},
		{"no requirement", "", http.StatusOK, `{"hasAccess":true}`},
		{"unknown feature fails closed", "?feature=teleport", http.StatusOK, `{"hasAccess":false}`},
		{"malformed feature", "?feature=tele-port", http.StatusBadRequest, ""},
		{"unknown tier", "?requiredTier=gold", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, base+tt.query, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestGate_ErrorCodes(t *testing.T) {
	h := newTestServer(newStubBilling())
	org := uuid.New()

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/gate?feature=%s", org, url.QueryEscape("drop table;")), "")
	assert.Equal(t, "InvalidFeature", decode[APIError](t, rec).Code)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/gate?requiredTier=gold", org), "")
	assert.Equal(t, "InvalidTier", decode[APIError](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/api/v1/organizations/not-a-uuid/gate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidOrganizationID", decode[APIError](t, rec).Code)
}

func TestGate_TagsContext(t *testing.T) {
	svc := newStubBilling()
	h := newTestServer(svc)
	org := uuid.New()

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/gate", org), nil)
	req.Header.Set(CorrelationHeader, "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-1", rec.Header().Get(CorrelationHeader))
	require.NotNil(t, svc.lastCtx)
	assert.Equal(t, "corr-1", observability.CorrelationIDFromContext(svc.lastCtx))
	assert.Equal(t, org.String(), observability.OrganizationIDFromContext(svc.lastCtx))
	assert.NotEmpty(t, observability.RequestIDFromContext(svc.lastCtx))
}

func TestUpgrade(t *testing.T) {
	svc := newStubBilling()
	h := newTestServer(svc)
	org := uuid.New()
	path := fmt.Sprintf("/api/v1/organizations/%s/upgrade", org)

	rec := do(t, h, http.MethodPost, path, `{"tier":"premium"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"tier":"premium"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, path, `{"tier":"basic"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	denied := decode[UpgradeResponse](t, rec)
	assert.False(t, denied.Success)
	assert.Equal(t, "DowngradeNotAllowed", denied.Code)
	assert.Contains(t, denied.Error, "downgrade")

	rec = do(t, h, http.MethodPost, path, `{"tier":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidTier", decode[APIError](t, rec).Code)

	rec = do(t, h, http.MethodPost, path, `tier=premium`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpgrade_PersistenceFailure(t *testing.T) {
	svc := newStubBilling()
	svc.err = fmt.Errorf("update subscription: %w: connection reset", domain.ErrPersistenceFailure)
	h := newTestServer(svc)

	rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/v1/organizations/%s/upgrade", uuid.New()), `{"tier":"premium"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[UpgradeResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "PersistenceFailure", resp.Code)
	assert.NotEmpty(t, resp.Error)
	assert.NotContains(t, resp.Error, "connection reset")

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/subscription", uuid.New()), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubscriptionAndHistory(t *testing.T) {
	svc := newStubBilling()
	h := newTestServer(svc)
	org := uuid.New()
	svc.tiers[org] = domain.TierPremium

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/subscription", org), "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[billingApp.SubscriptionView](t, rec)
	assert.Equal(t, domain.TierPremium, view.Tier)
	assert.Len(t, view.Features, 11)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%s/history", org), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changes":[]}`, rec.Body.String())
}

func TestCatalog(t *testing.T) {
	h := newTestServer(newStubBilling())

	rec := do(t, h, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Tiers []CatalogEntry `json:"tiers"`
	}](t, rec)
	require.Len(t, body.Tiers, 3)
	assert.Equal(t, domain.TierBasic, body.Tiers[0].Tier)
	assert.Equal(t, "Enterprise", body.Tiers[2].DisplayName)
	assert.Len(t, body.Tiers[2].Features, 16)
}

func TestHealth(t *testing.T) {
	health := observability.NewHealthRegistry()
	h := NewServer(DefaultServerConfig(), NewBillingHandler(newStubBilling(), nil), health, nil).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	health.Register("database", func(context.Context) observability.HealthCheckResult {
		return observability.HealthCheckResult{Status: observability.HealthStatusUnhealthy}
	})
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
