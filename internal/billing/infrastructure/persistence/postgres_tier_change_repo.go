package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

// PostgresTierChangeRepository stores the upgrade audit trail in PostgreSQL.
type PostgresTierChangeRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTierChangeRepository(pool *pgxpool.Pool) *PostgresTierChangeRepository {
	return &PostgresTierChangeRepository{pool: pool}
}

func (r *PostgresTierChangeRepository) Append(ctx context.Context, c domain.TierChange) error {
	features := make([]string, len(c.UnlockedFeatures))
	for i, f := range c.UnlockedFeatures {
		features[i] = string(f)
	}

	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, `
		INSERT INTO tier_changes (id, organization_id, from_tier, to_tier, unlocked_features, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OrganizationID, string(c.FromTier), string(c.ToTier), pq.Array(features), c.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tier change: %w", err)
	}
	return nil
}

// ListByOrganization returns changes oldest first.
func (r *PostgresTierChangeRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.TierChange, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT id, organization_id, from_tier, to_tier, unlocked_features, changed_at
		FROM tier_changes
		WHERE organization_id = $1
		ORDER BY changed_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("select tier changes: %w", err)
	}
	defer rows.Close()

	var out []domain.TierChange
	for rows.Next() {
		var (
			c        domain.TierChange
			from, to string
			features []string
		)
		if err := rows.Scan(&c.ID, &c.OrganizationID, &from, &to, pq.Array(&features), &c.ChangedAt); err != nil {
			return nil, err
		}
		c.FromTier, c.ToTier = domain.Tier(from), domain.Tier(to)
		c.UnlockedFeatures = make([]domain.Feature, len(features))
		for i, f := range features {
			c.UnlockedFeatures[i] = domain.Feature(f)
		}
		c.ChangedAt = c.ChangedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ domain.TierChangeRepository = (*PostgresTierChangeRepository)(nil)
