package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/eventbus"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	orgs []uuid.UUID
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, orgID uuid.UUID) error {
	r.orgs = append(r.orgs, orgID)
	return r.err
}

func tierChangedEnvelope(t *testing.T, org uuid.UUID) eventbus.Envelope {
	t.Helper()
	sub := domain.NewDefaultSubscription(org)
	sub.ClearDomainEvents()
	_, err := sub.ChangeTier(domain.TierPremium)
	require.NoError(t, err)

	msg, err := outbox.NewMessage(sub.DomainEvents()[0])
	require.NoError(t, err)
	return msg.Envelope()
}

func TestCacheInvalidator_HandlesTierChange(t *testing.T) {
	cache := &recordingInvalidator{}
	metrics := observability.NewInMemoryMetrics()
	h := NewCacheInvalidator(cache, nil, metrics)
	org := uuid.New()

	registry := eventbus.NewRegistry(nil)
	registry.Register(h)
	require.NoError(t, registry.Dispatch(context.Background(), tierChangedEnvelope(t, org)))

	assert.Equal(t, []uuid.UUID{org}, cache.orgs)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsConsumed,
		observability.T("routing_key", domain.RoutingKeySubscriptionTierChanged)))
}

func TestCacheInvalidator_RejectsBadPayload(t *testing.T) {
	h := NewCacheInvalidator(&recordingInvalidator{}, nil, nil)

	err := h.Handle(context.Background(), eventbus.Envelope{RoutingKey: domain.RoutingKeySubscriptionCreated, Payload: json.RawMessage(`{`)})
	assert.Error(t, err)

	err = h.Handle(context.Background(), eventbus.Envelope{RoutingKey: domain.RoutingKeySubscriptionCreated, Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestCacheInvalidator_PropagatesCacheError(t *testing.T) {
	h := NewCacheInvalidator(&recordingInvalidator{err: errors.New("redis down")}, nil, nil)
	err := h.Handle(context.Background(), tierChangedEnvelope(t, uuid.New()))
	assert.ErrorContains(t, err, "redis down")
}

func TestCacheInvalidator_Topics(t *testing.T) {
	h := NewCacheInvalidator(&recordingInvalidator{}, nil, nil)
	for _, key := range []string{domain.RoutingKeySubscriptionCreated, domain.RoutingKeySubscriptionTierChanged} {
		assert.True(t, eventbus.MatchTopic(h.Topics()[0], key), key)
	}
}
