package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/shared/domain"
)

// Envelope is the wire format of a domain event on the bus.
type Envelope struct {
	EventID       uuid.UUID            `json:"event_id"`
	AggregateID   uuid.UUID            `json:"aggregate_id"`
	AggregateType string               `json:"aggregate_type"`
	RoutingKey    string               `json:"routing_key"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Payload       json.RawMessage      `json:"payload"`
	Metadata      domain.EventMetadata `json:"metadata"`
}

// Publisher sends envelopes to a message broker.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Handler reacts to envelopes whose routing key matches one of its Topics.
// Topics use AMQP topic syntax: "*" matches one word, "#" zero or more.
type Handler interface {
	Topics() []string
	Handle(ctx context.Context, env Envelope) error
}
