package domain

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionRepository stores one subscription per organization.
// Implementations join the transaction carried by ctx.
type SubscriptionRepository interface {
	// FindByOrganizationID returns ErrSubscriptionNotFound when the organization has no row.
	// Inside a transaction it reads the stored row, never a cached copy, and may lock it.
	FindByOrganizationID(ctx context.Context, orgID uuid.UUID) (*Subscription, error)
	// Create inserts s unless the organization already has a subscription; created reports which.
	Create(ctx context.Context, s *Subscription) (created bool, err error)
	// Update overwrites tier, status and period fields. Updates decided inside a transaction are serialized by the store.
	Update(ctx context.Context, s *Subscription) error
}

// TierChangeRepository is the append-only audit trail of upgrades.
type TierChangeRepository interface {
	Append(ctx context.Context, change TierChange) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]TierChange, error)
}
