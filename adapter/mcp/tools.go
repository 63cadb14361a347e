package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/google/uuid"
	billingApp "github.com/occusafe/occusafe/internal/billing/application"
	"github.com/occusafe/occusafe/internal/billing/domain"
)

// BillingService is the part of the billing application exposed to agents.
type BillingService interface {
	Status(ctx context.Context, orgID uuid.UUID) (billingApp.SubscriptionView, error)
	Upgrade(ctx context.Context, orgID uuid.UUID, target domain.Tier) (bool, error)
	TierHistory(ctx context.Context, orgID uuid.UUID) ([]domain.TierChange, error)
	Resolver() *domain.Resolver
}

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	Billing BillingService
	// OrganizationID is used when a tool call does not name an organization.
	OrganizationID uuid.UUID
}

func (d ToolDependencies) organization(value string) (uuid.UUID, error) {
	id, err := parseOptionalUUID(value)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		id = d.OrganizationID
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("organization_id is required")
	}
	return id, nil
}

// RegisterTools registers the billing tools on srv.
func RegisterTools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.Billing == nil {
		return errors.New("billing service is required")
	}
	return registerBillingTools(srv, deps)
}
