package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	billingApp "github.com/occusafe/occusafe/internal/billing/application"
	"github.com/occusafe/occusafe/internal/billing/domain"
)

// ErrNotInitialized is returned by commands that need a database when none was wired.
var ErrNotInitialized = errors.New("billing commands require a database connection")

// BillingService is the part of the billing application the CLI drives.
type BillingService interface {
	Status(ctx context.Context, orgID uuid.UUID) (billingApp.SubscriptionView, error)
	CheckAccess(ctx context.Context, orgID uuid.UUID, req domain.GateRequest) (domain.Decision, error)
	Upgrade(ctx context.Context, orgID uuid.UUID, target domain.Tier) (bool, error)
	ListFeatures(ctx context.Context, orgID uuid.UUID) ([]domain.Feature, error)
	TierHistory(ctx context.Context, orgID uuid.UUID) ([]domain.TierChange, error)
	Resolver() *domain.Resolver
}

// App holds the CLI application dependencies.
type App struct {
	BillingService BillingService

	// OrganizationID is the tenant commands act on unless --org overrides it.
	OrganizationID uuid.UUID
}

// NewApp creates a new CLI application.
func NewApp(billingService BillingService, organizationID uuid.UUID) *App {
	return &App{
		BillingService: billingService,
		OrganizationID: organizationID,
	}
}

// Organization resolves the tenant for a command, preferring the --org flag.
func (a *App) Organization() (uuid.UUID, error) {
	if orgFlag != "" {
		id, err := uuid.Parse(orgFlag)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --org: %w", err)
		}
		return id, nil
	}
	if a.OrganizationID == uuid.Nil {
		return uuid.Nil, errors.New("no organization configured; set OCCUSAFE_ORGANIZATION_ID or pass --org")
	}
	return a.OrganizationID, nil
}

var app *App

// SetApp sets the global CLI app instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI app instance.
func GetApp() *App {
	return app
}

// Billing returns the wired app and the organization to act on.
func Billing() (*App, uuid.UUID, error) {
	a := GetApp()
	if a == nil || a.BillingService == nil {
		return nil, uuid.Nil, ErrNotInitialized
	}
	orgID, err := a.Organization()
	if err != nil {
		return nil, uuid.Nil, err
	}
	return a, orgID, nil
}
