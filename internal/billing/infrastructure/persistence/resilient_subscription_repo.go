package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker around the subscription store.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// ResilientSubscriptionRepository fails fast with ErrPersistenceFailure while the store is unhealthy.
// ErrSubscriptionNotFound is a normal answer and does not count against the store.
type ResilientSubscriptionRepository struct {
	inner   domain.SubscriptionRepository
	breaker *gobreaker.CircuitBreaker[any]
}

func NewResilientSubscriptionRepository(
	inner domain.SubscriptionRepository,
	cfg BreakerConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *ResilientSubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	defaults := DefaultBreakerConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}

	settings := gobreaker.Settings{
		Name:        "subscriptions",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrSubscriptionNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.Gauge(observability.MetricBreakerState, float64(to), observability.T("breaker", name))
		},
	}
	return &ResilientSubscriptionRepository{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State reports the breaker state, for health checks.
func (r *ResilientSubscriptionRepository) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientSubscriptionRepository) FindByOrganizationID(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.inner.FindByOrganizationID(ctx, orgID)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return result.(*domain.Subscription), nil
}

func (r *ResilientSubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) (bool, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.inner.Create(ctx, s)
	})
	if err != nil {
		return false, breakerError(err)
	}
	return result.(bool), nil
}

func (r *ResilientSubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.inner.Update(ctx, s)
	})
	return breakerError(err)
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: subscription store unavailable: %w", domain.ErrPersistenceFailure, err)
	}
	return err
}

var _ domain.SubscriptionRepository = (*ResilientSubscriptionRepository)(nil)
