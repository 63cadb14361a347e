package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	topics []string
	seen   []string
	err    error
}

func (h *recordingHandler) Topics() []string { return h.topics }

func (h *recordingHandler) Handle(_ context.Context, env Envelope) error {
	h.seen = append(h.seen, env.RoutingKey)
	return h.err
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"billing.subscription.tier_changed", "billing.subscription.tier_changed", true},
		{"billing.subscription.*", "billing.subscription.created", true},
		{"billing.subscription.*", "billing.subscription", false},
		{"billing.subscription.*", "billing.subscription.created.v2", false},
		{"billing.#", "billing.subscription.created", true},
		{"billing.#", "billing", true},
		{"#", "anything.at.all", true},
		{"#.created", "billing.subscription.created", true},
		{"*.subscription.*", "audit.subscription.created", true},
		{"billing.*", "audit.subscription", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchTopic(tt.pattern, tt.key))
		})
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	reg := NewRegistry(nil)
	wide := &recordingHandler{topics: []string{"billing.#", "billing.subscription.*"}}
	narrow := &recordingHandler{topics: []string{"billing.subscription.tier_changed"}}
	reg.Register(wide)
	reg.Register(narrow)

	ctx := context.Background()
	require.NoError(t, reg.Dispatch(ctx, Envelope{EventID: uuid.New(), RoutingKey: "billing.subscription.created"}))
	require.NoError(t, reg.Dispatch(ctx, Envelope{EventID: uuid.New(), RoutingKey: "billing.subscription.tier_changed"}))

	// wide matches twice per event but runs once
	assert.Equal(t, []string{"billing.subscription.created", "billing.subscription.tier_changed"}, wide.seen)
	assert.Equal(t, []string{"billing.subscription.tier_changed"}, narrow.seen)
	assert.Equal(t, []string{"billing.#", "billing.subscription.*", "billing.subscription.tier_changed"}, reg.Topics())
}

func TestRegistry_DispatchJoinsErrors(t *testing.T) {
	boom := errors.New("cache unavailable")
	failing := &recordingHandler{topics: []string{"#"}, err: boom}
	ok := &recordingHandler{topics: []string{"#"}}
	reg := NewRegistry(nil)
	reg.Register(failing)
	reg.Register(ok)

	err := reg.Dispatch(context.Background(), Envelope{RoutingKey: "billing.subscription.created"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.seen, 1)
}

func TestInProcessBus_Publish(t *testing.T) {
	bus := NewInProcessBus(nil)
	h := &recordingHandler{topics: []string{"billing.subscription.*"}}
	bus.Register(h)

	require.NoError(t, bus.Publish(context.Background(), Envelope{RoutingKey: "billing.subscription.created"}))
	require.NoError(t, bus.Publish(context.Background(), Envelope{RoutingKey: "audit.entry.created"}))
	assert.Equal(t, []string{"billing.subscription.created"}, h.seen)
	assert.NoError(t, bus.Close())
}
