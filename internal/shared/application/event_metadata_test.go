package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/shared/domain"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	domain.BaseEvent
}

func TestNewEventMetadata(t *testing.T) {
	actor := uuid.New()

	t.Run("fresh ids without correlation", func(t *testing.T) {
		a := NewEventMetadata(context.Background(), actor)
		b := NewEventMetadata(context.Background(), actor)

		assert.Equal(t, actor, a.ActorID)
		assert.NotEqual(t, uuid.Nil, a.CorrelationID)
		assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
		assert.NotEqual(t, a.CausationID, b.CausationID)
	})

	t.Run("reuses correlation id from context", func(t *testing.T) {
		corr := uuid.New()
		ctx := observability.WithCorrelationID(context.Background(), corr.String())

		md := NewEventMetadata(ctx, actor)
		assert.Equal(t, corr, md.CorrelationID)
	})

	t.Run("ignores malformed correlation id", func(t *testing.T) {
		ctx := observability.WithCorrelationID(context.Background(), "req-42")

		md := NewEventMetadata(ctx, actor)
		assert.NotEqual(t, uuid.Nil, md.CorrelationID)
	})
}

func TestApplyEventMetadata(t *testing.T) {
	md := NewEventMetadata(context.Background(), uuid.New())
	e1 := &recordedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Subscription", "billing.subscription.created")}
	e2 := &recordedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Subscription", "billing.subscription.tier_changed")}

	ApplyEventMetadata([]domain.DomainEvent{e1, e2}, md)

	assert.Equal(t, md, e1.Metadata())
	assert.Equal(t, md, e2.Metadata())
	require.NotPanics(t, func() { ApplyEventMetadata(nil, md) })
}
