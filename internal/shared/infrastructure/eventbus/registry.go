package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Registry dispatches envelopes to the handlers whose topic patterns match.
type Registry struct {
	mu       sync.RWMutex
	bindings []binding
	logger   *slog.Logger
}

type binding struct {
	pattern string
	handler Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register binds h to each of its topics.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, topic := range h.Topics() {
		r.bindings = append(r.bindings, binding{pattern: topic, handler: h})
	}
}

// Topics returns every bound pattern, in registration order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b.pattern)
	}
	return out
}

// Dispatch runs every matching handler once, even if several of its patterns match.
// All handlers run; their errors are joined.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) error {
	r.mu.RLock()
	var targets []Handler
	seen := make(map[Handler]bool)
	for _, b := range r.bindings {
		if !seen[b.handler] && MatchTopic(b.pattern, env.RoutingKey) {
			seen[b.handler] = true
			targets = append(targets, b.handler)
		}
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		r.logger.Debug("no handlers for routing key", "routing_key", env.RoutingKey)
		return nil
	}

	var errs []error
	for _, h := range targets {
		if err := h.Handle(ctx, env); err != nil {
			r.logger.Error("handler failed",
				"routing_key", env.RoutingKey,
				"event_id", env.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MatchTopic reports whether key matches an AMQP topic pattern.
func MatchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
