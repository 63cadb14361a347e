package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedApplication "github.com/occusafe/occusafe/internal/shared/application"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	"github.com/occusafe/occusafe/pkg/observability"
)

// EventWriter stores outgoing domain events alongside the state change that produced them.
type EventWriter interface {
	SaveBatch(ctx context.Context, msgs []*outbox.Message) error
}

// SubscriptionView is the read model handed to presentation layers.
type SubscriptionView struct {
	OrganizationID   uuid.UUID                 `json:"organizationId"`
	Tier             domain.Tier               `json:"tier"`
	Status           domain.SubscriptionStatus `json:"status"`
	Features         []domain.Feature          `json:"features"`
	SuggestedUpgrade *domain.Tier              `json:"suggestedUpgrade,omitempty"`
	TrialEndsAt      *time.Time                `json:"trialEndsAt,omitempty"`
	CurrentPeriodEnd *time.Time                `json:"currentPeriodEnd,omitempty"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

// Service provides subscription lookups, gate checks and tier upgrades.
type Service struct {
	subscriptions domain.SubscriptionRepository
	changes       domain.TierChangeRepository
	events        EventWriter
	uow           sharedApplication.UnitOfWork
	resolver      *domain.Resolver
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewService creates a new billing service.
func NewService(
	subscriptions domain.SubscriptionRepository,
	changes domain.TierChangeRepository,
	events EventWriter,
	uow sharedApplication.UnitOfWork,
	resolver *domain.Resolver,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if resolver == nil {
		resolver = domain.NewResolver(domain.DefaultCatalog())
	}
	return &Service{
		subscriptions: subscriptions,
		changes:       changes,
		events:        events,
		uow:           uow,
		resolver:      resolver,
		logger:        logger,
		metrics:       metrics,
	}
}

// Resolver returns the resolver gate checks are answered with.
func (s *Service) Resolver() *domain.Resolver { return s.resolver }

// GetOrCreateSubscription returns the organization's subscription, creating the
// basic/active default the first time the organization is seen.
func (s *Service) GetOrCreateSubscription(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subscriptions.FindByOrganizationID(ctx, orgID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, persistenceError("find subscription", err)
	}

	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		var err error
		sub, err = s.getOrCreate(txCtx, orgID)
		return err
	})
	if err != nil {
		return nil, persistenceError("create subscription", err)
	}
	return sub, nil
}

func (s *Service) getOrCreate(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subscriptions.FindByOrganizationID(ctx, orgID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, persistenceError("find subscription", err)
	}

	fresh := domain.NewDefaultSubscription(orgID)
	created, err := s.subscriptions.Create(ctx, fresh)
	if err != nil {
		return nil, persistenceError("create subscription", err)
	}
	if !created {
		// Another request created it first.
		existing, err := s.subscriptions.FindByOrganizationID(ctx, orgID)
		if err != nil {
			return nil, persistenceError("find subscription", err)
		}
		return existing, nil
	}

	if err := s.writeEvents(ctx, fresh); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "subscription created", "organization_id", orgID, "tier", fresh.Tier)
	return fresh, nil
}

// Upgrade moves the organization to target. It returns true once the new tier
// is committed, or when the organization is already on target.
// Persistence failures return false with an error wrapping domain.ErrPersistenceFailure;
// the stored tier is left as it was.
func (s *Service) Upgrade(ctx context.Context, orgID uuid.UUID, target domain.Tier) (bool, error) {
	timer := observability.StartTimer("billing.upgrade").
		WithLogger(s.logger).
		WithMetrics(s.metrics).
		WithTags(observability.T("tier", target.String()))

	if !target.IsValid() {
		err := fmt.Errorf("%w: %q", domain.ErrInvalidTier, target)
		s.metrics.Counter(observability.MetricUpgradesRejected, 1, observability.T("reason", "invalid_tier"))
		timer.StopWithError(err)
		return false, err
	}

	var (
		from    domain.Tier
		changed bool
	)
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		sub, err := s.subscriptions.FindByOrganizationID(txCtx, orgID)
		switch {
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			from, changed, err = s.createAt(txCtx, orgID, target)
			return err
		case err != nil:
			return persistenceError("find subscription", err)
		}
		from, changed, err = s.moveTo(txCtx, sub, target)
		return err
	})
	timer.StopWithError(err)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDowngradeNotAllowed):
		s.metrics.Counter(observability.MetricUpgradesRejected, 1, observability.T("reason", "downgrade"))
		s.logger.InfoContext(ctx, "downgrade rejected", "organization_id", orgID, "from", from, "to", target)
		return false, err
	default:
		s.metrics.Counter(observability.MetricUpgradesFailed, 1, observability.T("tier", target.String()))
		s.logger.ErrorContext(ctx, "upgrade failed", "organization_id", orgID, "to", target, "error", err)
		return false, persistenceError("upgrade", err)
	}

	if changed {
		s.metrics.Counter(observability.MetricUpgradesSucceeded, 1, observability.T("tier", target.String()))
		s.logger.InfoContext(ctx, "subscription upgraded", "organization_id", orgID, "from", from, "to", target)
	}
	return true, nil
}

// createAt stores a first subscription directly on target, so a new
// organization is written once.
func (s *Service) createAt(ctx context.Context, orgID uuid.UUID, target domain.Tier) (domain.Tier, bool, error) {
	sub := domain.NewDefaultSubscription(orgID)
	from := sub.Tier
	changed, err := sub.ChangeTier(target)
	if err != nil {
		return from, false, err
	}

	created, err := s.subscriptions.Create(ctx, sub)
	if err != nil {
		return from, false, persistenceError("create subscription", err)
	}
	if !created {
		// Another request created it first.
		existing, err := s.subscriptions.FindByOrganizationID(ctx, orgID)
		if err != nil {
			return from, false, persistenceError("find subscription", err)
		}
		return s.moveTo(ctx, existing, target)
	}

	s.logger.InfoContext(ctx, "subscription created", "organization_id", orgID, "tier", sub.Tier)
	return from, changed, s.recordUpgrade(ctx, sub, from, changed)
}

// moveTo applies target to an existing subscription.
func (s *Service) moveTo(ctx context.Context, sub *domain.Subscription, target domain.Tier) (domain.Tier, bool, error) {
	from := sub.Tier
	changed, err := sub.ChangeTier(target)
	if err != nil || !changed {
		return from, false, err
	}
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return from, false, persistenceError("update subscription", err)
	}
	return from, true, s.recordUpgrade(ctx, sub, from, true)
}

// recordUpgrade appends the audit entry for a tier move and queues the pending events.
func (s *Service) recordUpgrade(ctx context.Context, sub *domain.Subscription, from domain.Tier, changed bool) error {
	if changed {
		change := domain.NewTierChange(sub.OrganizationID, from, sub.Tier, s.resolver.Catalog())
		if err := s.changes.Append(ctx, change); err != nil {
			return persistenceError("record tier change", err)
		}
	}
	return s.writeEvents(ctx, sub)
}

// CheckAccess resolves a gate against the organization's current tier.
func (s *Service) CheckAccess(ctx context.Context, orgID uuid.UUID, req domain.GateRequest) (domain.Decision, error) {
	sub, err := s.GetOrCreateSubscription(ctx, orgID)
	if err != nil {
		return domain.Decision{}, err
	}

	decision := s.resolver.ResolveGate(sub.Tier, req)
	result := "denied"
	if decision.HasAccess {
		result = "granted"
	}
	s.metrics.Counter(observability.MetricGateDecisions, 1, observability.T("result", result))
	return decision, nil
}

// ListFeatures returns the features unlocked for the organization's tier.
func (s *Service) ListFeatures(ctx context.Context, orgID uuid.UUID) ([]domain.Feature, error) {
	sub, err := s.GetOrCreateSubscription(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Catalog().FeaturesForTier(sub.Tier), nil
}

// Status returns the organization's subscription with its unlocked features.
func (s *Service) Status(ctx context.Context, orgID uuid.UUID) (SubscriptionView, error) {
	sub, err := s.GetOrCreateSubscription(ctx, orgID)
	if err != nil {
		return SubscriptionView{}, err
	}

	view := SubscriptionView{
		OrganizationID:   sub.OrganizationID,
		Tier:             sub.Tier,
		Status:           sub.Status,
		Features:         s.resolver.Catalog().FeaturesForTier(sub.Tier),
		TrialEndsAt:      sub.TrialEndsAt,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		UpdatedAt:        sub.UpdatedAt,
	}
	if next, ok := s.resolver.SuggestedUpgrade(sub.Tier); ok {
		view.SuggestedUpgrade = &next
	}
	return view, nil
}

// TierHistory returns the organization's tier changes, oldest first.
func (s *Service) TierHistory(ctx context.Context, orgID uuid.UUID) ([]domain.TierChange, error) {
	changes, err := s.changes.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, persistenceError("list tier changes", err)
	}
	return changes, nil
}

func (s *Service) writeEvents(ctx context.Context, sub *domain.Subscription) error {
	events := sub.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, sub.OrganizationID))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	if err := s.events.SaveBatch(ctx, msgs); err != nil {
		return persistenceError("save outbox messages", err)
	}
	sub.ClearDomainEvents()
	return nil
}

// persistenceError tags err as a persistence failure unless it already carries a domain error.
func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrPersistenceFailure) ||
		errors.Is(err, domain.ErrDowngradeNotAllowed) ||
		errors.Is(err, domain.ErrInvalidTier) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistenceFailure, err)
}
