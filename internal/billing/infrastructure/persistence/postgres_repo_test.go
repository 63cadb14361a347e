package persistence

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/occusafe/occusafe/internal/billing/application"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedApplication "github.com/occusafe/occusafe/internal/shared/application"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/migrations"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Skipf("could not connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("could not ping database: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.RunPostgres(ctx, pool))
	return pool
}

// cleanupOrganization removes every row the test wrote for orgID.
func cleanupOrganization(t *testing.T, pool *pgxpool.Pool, orgID uuid.UUID) {
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM outbox WHERE payload->>'organization_id' = $1`, orgID.String())
		_, _ = pool.Exec(ctx, `DELETE FROM tier_changes WHERE organization_id = $1`, orgID)
		_, _ = pool.Exec(ctx, `DELETE FROM subscriptions WHERE organization_id = $1`, orgID)
	})
}

func countOrganizationEvents(t *testing.T, pool *pgxpool.Pool, orgID uuid.UUID) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM outbox WHERE payload->>'organization_id' = $1`, orgID.String(),
	).Scan(&n)
	require.NoError(t, err)
	return n
}

func newPostgresService(pool *pgxpool.Pool, changes domain.TierChangeRepository) *application.Service {
	return application.NewService(
		NewPostgresSubscriptionRepository(pool),
		changes,
		outbox.NewPostgresRepository(pool),
		sharedPersistence.NewPostgresUnitOfWork(pool),
		domain.NewResolver(domain.DefaultCatalog()),
		nil, nil,
	)
}

func TestPostgresSubscriptionRepository_CreateFindUpdate(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPostgresSubscriptionRepository(pool)
	ctx := context.Background()
	org := uuid.New()
	cleanupOrganization(t, pool, org)

	_, err := repo.FindByOrganizationID(ctx, org)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	sub := domain.NewDefaultSubscription(org)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Microsecond)
	sub.CurrentPeriodEnd = &periodEnd
	created, err := repo.Create(ctx, sub)
	require.NoError(t, err)
	assert.True(t, created)

	found, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)
	assert.Equal(t, domain.TierBasic, found.Tier)
	assert.Equal(t, domain.StatusActive, found.Status)
	assert.Nil(t, found.TrialEndsAt)
	require.NotNil(t, found.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*found.CurrentPeriodEnd))
	assert.WithinDuration(t, sub.CreatedAt, found.CreatedAt, time.Microsecond)

	_, err = found.ChangeTier(domain.TierEnterprise)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, found))

	updated, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierEnterprise, updated.Tier)

	missing := domain.NewDefaultSubscription(uuid.New())
	assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrSubscriptionNotFound)
}

func TestPostgresSubscriptionRepository_CreateIsOncePerOrganization(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPostgresSubscriptionRepository(pool)
	ctx := context.Background()
	org := uuid.New()
	cleanupOrganization(t, pool, org)

	first := domain.NewDefaultSubscription(org)
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.Create(ctx, domain.NewDefaultSubscription(org))
	require.NoError(t, err)
	assert.False(t, created)

	found, err := repo.FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestPostgresTierChangeRepository_RoundTripsUnlockedFeatures(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPostgresTierChangeRepository(pool)
	ctx := context.Background()
	org := uuid.New()
	cleanupOrganization(t, pool, org)
	catalog := domain.DefaultCatalog()

	empty, err := repo.ListByOrganization(ctx, org)
	require.NoError(t, err)
	assert.Empty(t, empty)

	toPremium := domain.NewTierChange(org, domain.TierBasic, domain.TierPremium, catalog)
	require.NoError(t, repo.Append(ctx, toPremium))
	toEnterprise := domain.NewTierChange(org, domain.TierPremium, domain.TierEnterprise, catalog)
	toEnterprise.ChangedAt = toPremium.ChangedAt.Add(time.Second)
	require.NoError(t, repo.Append(ctx, toEnterprise))

	changes, err := repo.ListByOrganization(ctx, org)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, toPremium.ID, changes[0].ID)
	assert.Equal(t, domain.TierBasic, changes[0].FromTier)
	assert.Equal(t, domain.TierPremium, changes[0].ToTier)
	assert.Equal(t, toPremium.UnlockedFeatures, changes[0].UnlockedFeatures)
	assert.Equal(t, toEnterprise.UnlockedFeatures, changes[1].UnlockedFeatures)
	assert.Contains(t, changes[0].UnlockedFeatures, domain.FeatureTrendAnalysis)
}

func TestPostgresService_Upgrade(t *testing.T) {
	pool := setupTestDB(t)
	svc := newPostgresService(pool, NewPostgresTierChangeRepository(pool))
	ctx := context.Background()
	org := uuid.New()
	cleanupOrganization(t, pool, org)

	ok, err := svc.Upgrade(ctx, org, domain.TierPremium)
	require.NoError(t, err)
	assert.True(t, ok)

	decision, err := svc.CheckAccess(ctx, org, domain.RequireFeature(domain.FeatureTrendAnalysis))
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)

	ok, err = svc.Upgrade(ctx, org, domain.TierBasic)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrDowngradeNotAllowed)

	history, err := svc.TierHistory(ctx, org)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, countOrganizationEvents(t, pool, org))
}

// failingPostgresTierChanges fails every append so the surrounding transaction must roll back.
type failingPostgresTierChanges struct {
	*PostgresTierChangeRepository
}

func (failingPostgresTierChanges) Append(context.Context, domain.TierChange) error {
	return errors.New("audit table locked")
}

func TestPostgresService_FailedUpgradeRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	org := uuid.New()
	cleanupOrganization(t, pool, org)

	_, err := newPostgresService(pool, NewPostgresTierChangeRepository(pool)).GetOrCreateSubscription(ctx, org)
	require.NoError(t, err)

	svc := newPostgresService(pool, failingPostgresTierChanges{NewPostgresTierChangeRepository(pool)})
	ok, err := svc.Upgrade(ctx, org, domain.TierEnterprise)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

	sub, err := NewPostgresSubscriptionRepository(pool).FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierBasic, sub.Tier)
	assert.Equal(t, 1, countOrganizationEvents(t, pool, org), "only the creation event survives")
}

func TestPostgresRepositories_JoinUnitOfWork(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPostgresSubscriptionRepository(pool)
	org := uuid.New()
	cleanupOrganization(t, pool, org)

	err := sharedApplication.WithUnitOfWork(context.Background(), sharedPersistence.NewPostgresUnitOfWork(pool), func(ctx context.Context) error {
		if _, err := repo.Create(ctx, domain.NewDefaultSubscription(org)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = repo.FindByOrganizationID(context.Background(), org)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestPostgresService_ConcurrentUpgradesSerialize(t *testing.T) {
	pool := setupTestDB(t)
	svc := newPostgresService(pool, NewPostgresTierChangeRepository(pool))
	ctx := context.Background()
	org := uuid.New()
	cleanupOrganization(t, pool, org)

	_, err := svc.GetOrCreateSubscription(ctx, org)
	require.NoError(t, err)

	targets := []domain.Tier{domain.TierPremium, domain.TierEnterprise, domain.TierPremium, domain.TierEnterprise}
	errs := make(chan error, len(targets))
	for _, target := range targets {
		go func(target domain.Tier) {
			_, err := svc.Upgrade(ctx, org, target)
			errs <- err
		}(target)
	}
	for range targets {
		if err := <-errs; err != nil {
			assert.ErrorIs(t, err, domain.ErrDowngradeNotAllowed)
		}
	}

	sub, err := NewPostgresSubscriptionRepository(pool).FindByOrganizationID(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, domain.TierEnterprise, sub.Tier, "the highest requested tier wins")

	history, err := svc.TierHistory(ctx, org)
	require.NoError(t, err)
	for _, change := range history {
		assert.Greater(t, change.ToTier.Rank(), change.FromTier.Rank())
	}
}
