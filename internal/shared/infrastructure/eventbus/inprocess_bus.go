package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// InProcessBus delivers envelopes synchronously to registered handlers.
// It is the publisher used when no broker is configured; with no handlers it discards everything.
type InProcessBus struct {
	registry *Registry
	logger   *slog.Logger
}

func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{registry: NewRegistry(logger), logger: logger}
}

func (b *InProcessBus) Register(h Handler) {
	b.registry.Register(h)
}

// Publish dispatches env before returning. Handler errors are returned so the outbox retries.
func (b *InProcessBus) Publish(ctx context.Context, env Envelope) error {
	start := time.Now()
	err := b.registry.Dispatch(ctx, env)
	b.logger.Debug("in-process publish",
		"routing_key", env.RoutingKey,
		"event_id", env.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

func (b *InProcessBus) Close() error { return nil }
