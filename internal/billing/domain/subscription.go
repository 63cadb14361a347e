package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	shared "github.com/occusafe/occusafe/internal/shared/domain"
)

// SubscriptionStatus represents the current billing state.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusTrial     SubscriptionStatus = "trial"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// ParseStatus validates a stored status value.
func ParseStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(s); st {
	case StatusActive, StatusTrial, StatusPastDue, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown subscription status %q", s)
	}
}

// Subscription is an organization's billing state. One per organization.
type Subscription struct {
	shared.EventRecorder

	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Tier             Tier
	Status           SubscriptionStatus
	TrialEndsAt      *time.Time
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDefaultSubscription is what an organization gets the first time it is seen: basic and active.
func NewDefaultSubscription(orgID uuid.UUID) *Subscription {
	now := time.Now().UTC()
	s := &Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Tier:           TierBasic,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.AddDomainEvent(NewSubscriptionCreated(s))
	return s
}

// ChangeTier moves the subscription up to target.
// Reaching the current tier again is a no-op reported as changed=false.
func (s *Subscription) ChangeTier(target Tier) (bool, error) {
	if !target.IsValid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidTier, target)
	}
	if target == s.Tier {
		return false, nil
	}
	if target.Rank() < s.Tier.Rank() {
		return false, fmt.Errorf("%w: %s to %s", ErrDowngradeNotAllowed, s.Tier, target)
	}

	from := s.Tier
	s.Tier = target
	s.Status = StatusActive
	s.UpdatedAt = time.Now().UTC()
	s.AddDomainEvent(NewSubscriptionTierChanged(s, from))
	return true, nil
}

// Snapshot copies the persisted fields without pending events.
func (s *Subscription) Snapshot() Subscription {
	return Subscription{
		ID:               s.ID,
		OrganizationID:   s.OrganizationID,
		Tier:             s.Tier,
		Status:           s.Status,
		TrialEndsAt:      s.TrialEndsAt,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// TierChange is one row of the upgrade audit trail.
type TierChange struct {
	ID               uuid.UUID `json:"id"`
	OrganizationID   uuid.UUID `json:"organizationId"`
	FromTier         Tier      `json:"fromTier"`
	ToTier           Tier      `json:"toTier"`
	UnlockedFeatures []Feature `json:"unlockedFeatures"`
	ChangedAt        time.Time `json:"changedAt"`
}

// NewTierChange records a move and the features it unlocked under catalog.
func NewTierChange(orgID uuid.UUID, from, to Tier, catalog *Catalog) TierChange {
	return TierChange{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		FromTier:         from,
		ToTier:           to,
		UnlockedFeatures: catalog.Unlocked(from, to),
		ChangedAt:        time.Now().UTC(),
	}
}
