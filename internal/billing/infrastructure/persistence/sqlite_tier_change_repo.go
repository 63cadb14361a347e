package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

// SQLiteTierChangeRepository stores the upgrade audit trail in SQLite.
// Unlocked features are kept as a JSON array.
type SQLiteTierChangeRepository struct {
	db *sql.DB
}

func NewSQLiteTierChangeRepository(db *sql.DB) *SQLiteTierChangeRepository {
	return &SQLiteTierChangeRepository{db: db}
}

func (r *SQLiteTierChangeRepository) Append(ctx context.Context, c domain.TierChange) error {
	features := c.UnlockedFeatures
	if features == nil {
		features = []domain.Feature{}
	}
	encoded, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("encode unlocked features: %w", err)
	}

	_, err = sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO tier_changes (id, organization_id, from_tier, to_tier, unlocked_features, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(),
		c.OrganizationID.String(),
		string(c.FromTier),
		string(c.ToTier),
		string(encoded),
		sharedPersistence.FormatSQLiteTime(c.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("insert tier change: %w", err)
	}
	return nil
}

// ListByOrganization returns changes oldest first.
func (r *SQLiteTierChangeRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.TierChange, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, organization_id, from_tier, to_tier, unlocked_features, changed_at
		FROM tier_changes
		WHERE organization_id = ?
		ORDER BY changed_at, id`, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("select tier changes: %w", err)
	}
	defer rows.Close()

	var out []domain.TierChange
	for rows.Next() {
		var (
			c                          domain.TierChange
			id, org, from, to, changed string
			features                   string
		)
		if err := rows.Scan(&id, &org, &from, &to, &features, &changed); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("tier change id: %w", err)
		}
		if c.OrganizationID, err = uuid.Parse(org); err != nil {
			return nil, fmt.Errorf("tier change organization_id: %w", err)
		}
		c.FromTier, c.ToTier = domain.Tier(from), domain.Tier(to)
		if err := json.Unmarshal([]byte(features), &c.UnlockedFeatures); err != nil {
			return nil, fmt.Errorf("tier change %s features: %w", id, err)
		}
		if c.ChangedAt, err = sharedPersistence.ParseSQLiteTime(changed); err != nil {
			return nil, fmt.Errorf("tier change %s changed_at: %w", id, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ domain.TierChangeRepository = (*SQLiteTierChangeRepository)(nil)
