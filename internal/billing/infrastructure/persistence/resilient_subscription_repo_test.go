package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySubscriptions struct {
	err   error
	calls int
}

func (f *flakySubscriptions) FindByOrganizationID(context.Context, uuid.UUID) (*domain.Subscription, error) {
	f.calls++
	return nil, f.err
}

func (f *flakySubscriptions) Create(context.Context, *domain.Subscription) (bool, error) {
	f.calls++
	return f.err == nil, f.err
}

func (f *flakySubscriptions) Update(context.Context, *domain.Subscription) error {
	f.calls++
	return f.err
}

func TestResilientSubscriptionRepository_OpensAfterFailures(t *testing.T) {
	inner := &flakySubscriptions{err: errors.New("connection refused")}
	metrics := observability.NewInMemoryMetrics()
	repo := NewResilientSubscriptionRepository(inner, BreakerConfig{MaxFailures: 3, OpenTimeout: time.Minute}, nil, metrics)
	ctx := context.Background()

	for range 3 {
		_, err := repo.FindByOrganizationID(ctx, uuid.New())
		assert.ErrorContains(t, err, "connection refused")
		assert.NotErrorIs(t, err, domain.ErrPersistenceFailure)
	}
	assert.Equal(t, gobreaker.StateOpen, repo.State())

	err := repo.Update(ctx, domain.NewDefaultSubscription(uuid.New()))
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the store")
	assert.Equal(t, float64(gobreaker.StateOpen), metrics.GetGauge(observability.MetricBreakerState, observability.T("breaker", "subscriptions")))
}

func TestResilientSubscriptionRepository_NotFoundDoesNotTrip(t *testing.T) {
	inner := &flakySubscriptions{err: domain.ErrSubscriptionNotFound}
	repo := NewResilientSubscriptionRepository(inner, BreakerConfig{MaxFailures: 1}, nil, nil)

	for range 5 {
		_, err := repo.FindByOrganizationID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestResilientSubscriptionRepository_PassesThrough(t *testing.T) {
	db := openTestDB(t)
	repo := NewResilientSubscriptionRepository(NewSQLiteSubscriptionRepository(db), DefaultBreakerConfig(), nil, nil)
	ctx := context.Background()
	sub := domain.NewDefaultSubscription(uuid.New())

	created, err := repo.Create(ctx, sub)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := repo.FindByOrganizationID(ctx, sub.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
}
