package mcp

import (
	"errors"

	"github.com/google/uuid"
	mcplocal "github.com/occusafe/occusafe/adapter/mcp"
	"github.com/occusafe/occusafe/internal/app"
)

// NewToolDependencies binds the MCP tools to the container's billing service.
func NewToolDependencies(container *app.Container, organizationID uuid.UUID) (mcplocal.ToolDependencies, error) {
	if container == nil || container.BillingService == nil {
		return mcplocal.ToolDependencies{}, errors.New("billing service is required")
	}
	return mcplocal.ToolDependencies{
		Billing:        container.BillingService,
		OrganizationID: organizationID,
	}, nil
}
