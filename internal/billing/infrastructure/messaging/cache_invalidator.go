package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/eventbus"
	"github.com/occusafe/occusafe/pkg/observability"
)

// SubscriptionTopics matches every subscription event.
const SubscriptionTopics = "billing.subscription.*"

// Invalidator drops cached state for an organization.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

// CacheInvalidator evicts cached subscriptions when another process reports a change.
type CacheInvalidator struct {
	cache   Invalidator
	logger  *slog.Logger
	metrics observability.Metrics
}

func NewCacheInvalidator(cache Invalidator, logger *slog.Logger, metrics observability.Metrics) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CacheInvalidator{cache: cache, logger: logger, metrics: metrics}
}

func (h *CacheInvalidator) Topics() []string {
	return []string{SubscriptionTopics}
}

func (h *CacheInvalidator) Handle(ctx context.Context, env eventbus.Envelope) error {
	var payload struct {
		OrganizationID uuid.UUID `json:"organization_id"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.RoutingKey, err)
	}
	if payload.OrganizationID == uuid.Nil {
		return fmt.Errorf("%s event %s has no organization_id", env.RoutingKey, env.EventID)
	}

	if err := h.cache.Invalidate(ctx, payload.OrganizationID); err != nil {
		return fmt.Errorf("invalidate subscription %s: %w", payload.OrganizationID, err)
	}
	h.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", env.RoutingKey))
	h.logger.DebugContext(ctx, "subscription cache invalidated", "organization_id", payload.OrganizationID, "event_id", env.EventID)
	return nil
}

var _ eventbus.Handler = (*CacheInvalidator)(nil)
