package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/occusafe/occusafe/internal/billing/domain"
)

type orgInput struct {
	OrganizationID string `json:"organization_id,omitempty"`
}

type billingCheckInput struct {
	OrganizationID string `json:"organization_id,omitempty"`
	Feature        string `json:"feature,omitempty"`
	RequiredTier   string `json:"required_tier,omitempty"`
}

type billingUpgradeInput struct {
	OrganizationID string `json:"organization_id,omitempty"`
	Tier           string `json:"tier" jsonschema:"required"`
}

type catalogTier struct {
	domain.TierInfo
	Features []domain.Feature `json:"features"`
}

type checkResult struct {
	domain.Decision
	Tier             domain.Tier  `json:"tier"`
	SuggestedUpgrade *domain.Tier `json:"suggestedUpgrade,omitempty"`
}

type upgradeResult struct {
	Success bool        `json:"success"`
	Tier    domain.Tier `json:"tier,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type billingTools struct {
	deps ToolDependencies
}

func registerBillingTools(srv *mcp.Server, deps ToolDependencies) error {
	tools := billingTools{deps: deps}

	srv.Tool("billing.status").
		Description("Get the organization's subscription tier, status and unlocked features").
		Handler(func(ctx context.Context, input orgInput) (any, error) {
			return tools.status(ctx, input)
		})

	srv.Tool("billing.catalog").
		Description("List every tier with the features it grants").
		Handler(func(ctx context.Context, input struct{}) (any, error) {
			return tools.catalog(), nil
		})

	srv.Tool("billing.check").
		Description("Check whether the organization may use a feature or a tier-gated surface. A feature takes precedence over required_tier.").
		Handler(func(ctx context.Context, input billingCheckInput) (any, error) {
			return tools.check(ctx, input)
		})

	srv.Tool("billing.upgrade").
		Description("Move the organization to a higher tier. Downgrades are rejected.").
		Handler(func(ctx context.Context, input billingUpgradeInput) (any, error) {
			return tools.upgrade(ctx, input)
		})

	srv.Tool("billing.history").
		Description("List the organization's tier changes, oldest first").
		Handler(func(ctx context.Context, input orgInput) (any, error) {
			return tools.history(ctx, input)
		})

	return nil
}

func (t billingTools) status(ctx context.Context, input orgInput) (any, error) {
	orgID, err := t.deps.organization(input.OrganizationID)
	if err != nil {
		return nil, err
	}
	return t.deps.Billing.Status(ctx, orgID)
}

func (t billingTools) catalog() []catalogTier {
	catalog := t.deps.Billing.Resolver().Catalog()
	tiers := domain.AllTiers()
	out := make([]catalogTier, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, catalogTier{TierInfo: tier.Info(), Features: catalog.FeaturesForTier(tier)})
	}
	return out
}

func (t billingTools) check(ctx context.Context, input billingCheckInput) (*checkResult, error) {
	orgID, err := t.deps.organization(input.OrganizationID)
	if err != nil {
		return nil, err
	}
	req, err := gateRequest(input.Feature, input.RequiredTier)
	if err != nil {
		return nil, err
	}
	view, err := t.deps.Billing.Status(ctx, orgID)
	if err != nil {
		return nil, err
	}
	decision := t.deps.Billing.Resolver().ResolveGate(view.Tier, req)
	return &checkResult{Decision: decision, Tier: view.Tier, SuggestedUpgrade: view.SuggestedUpgrade}, nil
}

func (t billingTools) upgrade(ctx context.Context, input billingUpgradeInput) (*upgradeResult, error) {
	orgID, err := t.deps.organization(input.OrganizationID)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseTier(input.Tier)
	if err != nil {
		return nil, err
	}

	ok, err := t.deps.Billing.Upgrade(ctx, orgID, target)
	if err != nil {
		// A rejected upgrade is an answer, not a tool failure.
		if errors.Is(err, domain.ErrDowngradeNotAllowed) || errors.Is(err, domain.ErrPersistenceFailure) {
			return &upgradeResult{Success: false, Error: err.Error()}, nil
		}
		return nil, err
	}
	return &upgradeResult{Success: ok, Tier: target}, nil
}

func (t billingTools) history(ctx context.Context, input orgInput) ([]domain.TierChange, error) {
	orgID, err := t.deps.organization(input.OrganizationID)
	if err != nil {
		return nil, err
	}
	changes, err := t.deps.Billing.TierHistory(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if changes == nil {
		changes = []domain.TierChange{}
	}
	return changes, nil
}
