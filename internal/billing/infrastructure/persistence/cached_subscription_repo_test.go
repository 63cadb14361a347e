package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/application"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedApplication "github.com/occusafe/occusafe/internal/shared/application"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedSubscriptionRepository(t *testing.T) {
	mr, client := newTestRedis(t)
	db := openTestDB(t)
	metrics := observability.NewInMemoryMetrics()
	repo := NewCachedSubscriptionRepository(NewSQLiteSubscriptionRepository(db), client, 0, nil, metrics)
	ctx := context.Background()
	org := uuid.New()

	_, err := repo.FindByOrganizationID(ctx, org)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.False(t, mr.Exists(SubscriptionKey(org)), "misses are not cached")

	sub := domain.NewDefaultSubscription(org)
	_, err = repo.Create(ctx, sub)
	require.NoError(t, err)

	_, err = repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.True(t, mr.Exists(SubscriptionKey(org)))
	assert.Equal(t, DefaultSubscriptionCacheTTL, mr.TTL(SubscriptionKey(org)))

	cached, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, cached.ID)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricCacheHits, observability.T("cache", "subscription")))
	assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricCacheMisses, observability.T("cache", "subscription")))

	_, err = cached.ChangeTier(domain.TierPremium)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, cached))
	assert.False(t, mr.Exists(SubscriptionKey(org)), "update must evict the snapshot")

	fresh, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPremium, fresh.Tier)
}

func TestCachedSubscriptionRepository_RedisDownFallsThrough(t *testing.T) {
	mr, client := newTestRedis(t)
	db := openTestDB(t)
	repo := NewCachedSubscriptionRepository(NewSQLiteSubscriptionRepository(db), client, 0, nil, nil)
	ctx := context.Background()
	org := uuid.New()

	mr.Close()
	_, err := repo.Create(ctx, domain.NewDefaultSubscription(org))
	require.NoError(t, err)

	sub, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierBasic, sub.Tier)
}

func TestCachedSubscriptionRepository_EvictsOnlyAfterCommit(t *testing.T) {
	mr, client := newTestRedis(t)
	db := openTestDB(t)
	repo := NewCachedSubscriptionRepository(NewSQLiteSubscriptionRepository(db), client, 0, nil, nil)
	uow := sharedPersistence.NewSQLiteUnitOfWork(db)
	ctx := context.Background()
	org := uuid.New()
	key := SubscriptionKey(org)

	_, err := repo.Create(ctx, domain.NewDefaultSubscription(org))
	require.NoError(t, err)
	_, err = repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	upgrade := func(txCtx context.Context) error {
		sub, err := repo.FindByOrganizationID(txCtx, org)
		if err != nil {
			return err
		}
		if _, err := sub.ChangeTier(domain.TierPremium); err != nil {
			return err
		}
		if err := repo.Update(txCtx, sub); err != nil {
			return err
		}
		assert.True(t, mr.Exists(key), "snapshot stays until commit")
		return nil
	}

	err = sharedApplication.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		if err := upgrade(txCtx); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.True(t, mr.Exists(key), "rolled back write keeps the snapshot")

	sub, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierBasic, sub.Tier)

	require.NoError(t, sharedApplication.WithUnitOfWork(ctx, uow, upgrade))
	assert.False(t, mr.Exists(key))

	sub, err = repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPremium, sub.Tier)
}

func TestService_UpgradeIgnoresStaleSnapshot(t *testing.T) {
	mr, client := newTestRedis(t)
	db := openTestDB(t)
	ctx := context.Background()
	org := uuid.New()

	svc := application.NewService(
		NewCachedSubscriptionRepository(NewSQLiteSubscriptionRepository(db), client, 0, nil, nil),
		NewSQLiteTierChangeRepository(db),
		outbox.NewSQLiteRepository(db),
		sharedPersistence.NewSQLiteUnitOfWork(db),
		domain.NewResolver(domain.DefaultCatalog()),
		nil, nil,
	)

	view, err := svc.Status(ctx, org)
	require.NoError(t, err)
	require.Equal(t, domain.TierBasic, view.Tier)
	view, err = svc.Status(ctx, org)
	require.NoError(t, err)
	require.Equal(t, domain.TierBasic, view.Tier)
	require.True(t, mr.Exists(SubscriptionKey(org)))

	// Another instance moved the organization up without touching this cache.
	_, err = db.ExecContext(ctx, `UPDATE subscriptions SET tier = 'enterprise' WHERE organization_id = ?`, org.String())
	require.NoError(t, err)

	ok, err := svc.Upgrade(ctx, org, domain.TierPremium)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrDowngradeNotAllowed)

	stored, err := NewSQLiteSubscriptionRepository(db).FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierEnterprise, stored.Tier)

	history, err := svc.TierHistory(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDecodeCachedSubscription_RejectsGarbage(t *testing.T) {
	_, err := decodeCachedSubscription([]byte(`{"tier":"gold","status":"active"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidTier)

	_, err = decodeCachedSubscription([]byte(`not json`))
	assert.Error(t, err)
}
