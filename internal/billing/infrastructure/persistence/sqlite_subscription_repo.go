package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

// SQLiteSubscriptionRepository implements SubscriptionRepository with SQLite.
type SQLiteSubscriptionRepository struct {
	db *sql.DB
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(db *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db}
}

// Create inserts the subscription unless the organization already has one.
func (r *SQLiteSubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) (bool, error) {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, organization_id, tier, status, trial_ends_at, current_period_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id) DO NOTHING`,
		s.ID.String(),
		s.OrganizationID.String(),
		string(s.Tier),
		string(s.Status),
		sharedPersistence.NullSQLiteTime(s.TrialEndsAt),
		sharedPersistence.NullSQLiteTime(s.CurrentPeriodEnd),
		sharedPersistence.FormatSQLiteTime(s.CreatedAt),
		sharedPersistence.FormatSQLiteTime(s.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update overwrites the mutable fields of an existing subscription.
func (r *SQLiteSubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE subscriptions
		SET tier = ?, status = ?, trial_ends_at = ?, current_period_end = ?, updated_at = ?
		WHERE organization_id = ?`,
		string(s.Tier),
		string(s.Status),
		sharedPersistence.NullSQLiteTime(s.TrialEndsAt),
		sharedPersistence.NullSQLiteTime(s.CurrentPeriodEnd),
		sharedPersistence.FormatSQLiteTime(s.UpdatedAt),
		s.OrganizationID.String(),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// FindByOrganizationID returns the organization's subscription.
func (r *SQLiteSubscriptionRepository) FindByOrganizationID(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)

	var (
		id, org, tier, status string
		trialEnds, periodEnd  sql.NullString
		createdAt, updatedAt  string
	)
	err := exec.QueryRowContext(ctx, `
		SELECT id, organization_id, tier, status, trial_ends_at, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE organization_id = ?`, orgID.String(),
	).Scan(&id, &org, &tier, &status, &trialEnds, &periodEnd, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select subscription: %w", err)
	}

	s := &domain.Subscription{}
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("subscription id: %w", err)
	}
	if s.OrganizationID, err = uuid.Parse(org); err != nil {
		return nil, fmt.Errorf("subscription organization_id: %w", err)
	}
	if s.Tier, err = domain.ParseTier(tier); err != nil {
		return nil, fmt.Errorf("stored subscription tier: %w: %w", domain.ErrPersistenceFailure, err)
	}
	if s.Status, err = domain.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("stored subscription status: %w: %w", domain.ErrPersistenceFailure, err)
	}
	if s.TrialEndsAt, err = sharedPersistence.ParseNullSQLiteTime(trialEnds); err != nil {
		return nil, fmt.Errorf("subscription trial_ends_at: %w", err)
	}
	if s.CurrentPeriodEnd, err = sharedPersistence.ParseNullSQLiteTime(periodEnd); err != nil {
		return nil, fmt.Errorf("subscription current_period_end: %w", err)
	}
	if s.CreatedAt, err = sharedPersistence.ParseSQLiteTime(createdAt); err != nil {
		return nil, fmt.Errorf("subscription created_at: %w", err)
	}
	if s.UpdatedAt, err = sharedPersistence.ParseSQLiteTime(updatedAt); err != nil {
		return nil, fmt.Errorf("subscription updated_at: %w", err)
	}
	return s, nil
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
