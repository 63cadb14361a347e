package domain

import (
	"github.com/google/uuid"
	shared "github.com/occusafe/occusafe/internal/shared/domain"
)

const (
	AggregateType = "Subscription"

	RoutingKeySubscriptionCreated     = "billing.subscription.created"
	RoutingKeySubscriptionTierChanged = "billing.subscription.tier_changed"
)

// SubscriptionCreated is recorded when an organization receives its default subscription.
type SubscriptionCreated struct {
	shared.BaseEvent
	OrganizationID uuid.UUID          `json:"organization_id"`
	Tier           Tier               `json:"tier"`
	Status         SubscriptionStatus `json:"status"`
}

func NewSubscriptionCreated(s *Subscription) *SubscriptionCreated {
	return &SubscriptionCreated{
		BaseEvent:      shared.NewBaseEvent(s.ID, AggregateType, RoutingKeySubscriptionCreated),
		OrganizationID: s.OrganizationID,
		Tier:           s.Tier,
		Status:         s.Status,
	}
}

// SubscriptionTierChanged is recorded on every successful upgrade.
type SubscriptionTierChanged struct {
	shared.BaseEvent
	OrganizationID uuid.UUID `json:"organization_id"`
	FromTier       Tier      `json:"from_tier"`
	ToTier         Tier      `json:"to_tier"`
}

func NewSubscriptionTierChanged(s *Subscription, from Tier) *SubscriptionTierChanged {
	return &SubscriptionTierChanged{
		BaseEvent:      shared.NewBaseEvent(s.ID, AggregateType, RoutingKeySubscriptionTierChanged),
		OrganizationID: s.OrganizationID,
		FromTier:       from,
		ToTier:         s.Tier,
	}
}
