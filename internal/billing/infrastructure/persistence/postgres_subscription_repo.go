package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

// PostgresSubscriptionRepository implements SubscriptionRepository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Create inserts the subscription unless the organization already has one.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) (bool, error) {
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, `
		INSERT INTO subscriptions (
			id, organization_id, tier, status, trial_ends_at, current_period_end, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (organization_id) DO NOTHING`,
		s.ID,
		s.OrganizationID,
		string(s.Tier),
		string(s.Status),
		s.TrialEndsAt,
		s.CurrentPeriodEnd,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update overwrites the mutable fields of an existing subscription.
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, `
		UPDATE subscriptions
		SET tier = $1, status = $2, trial_ends_at = $3, current_period_end = $4, updated_at = $5
		WHERE organization_id = $6`,
		string(s.Tier),
		string(s.Status),
		s.TrialEndsAt,
		s.CurrentPeriodEnd,
		s.UpdatedAt,
		s.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

const selectSubscription = `
		SELECT id, organization_id, tier, status, trial_ends_at, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE organization_id = $1`

// FindByOrganizationID returns the organization's subscription. Inside a
// transaction the row stays locked until commit, so concurrent upgrades
// read each other's result instead of racing.
func (r *PostgresSubscriptionRepository) FindByOrganizationID(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	var (
		s            domain.Subscription
		tier, status string
		trialEnds    *time.Time
		periodEnd    *time.Time
	)
	query := selectSubscription
	if _, ok := sharedPersistence.TxInfoFromContext(ctx); ok {
		query += " FOR UPDATE"
	}
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, orgID).
		Scan(&s.ID, &s.OrganizationID, &tier, &status, &trialEnds, &periodEnd, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select subscription: %w", err)
	}

	if s.Tier, err = domain.ParseTier(tier); err != nil {
		return nil, fmt.Errorf("stored subscription tier: %w: %w", domain.ErrPersistenceFailure, err)
	}
	if s.Status, err = domain.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("stored subscription status: %w: %w", domain.ErrPersistenceFailure, err)
	}
	s.TrialEndsAt, s.CurrentPeriodEnd = trialEnds, periodEnd
	s.CreatedAt, s.UpdatedAt = s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	return &s, nil
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
