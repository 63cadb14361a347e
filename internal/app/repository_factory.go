package app

import (
	"context"
	"fmt"

	billingDomain "github.com/occusafe/occusafe/internal/billing/domain"
	billingPersistence "github.com/occusafe/occusafe/internal/billing/infrastructure/persistence"
	sharedApplication "github.com/occusafe/occusafe/internal/shared/application"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/database"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/migrations"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	handle *database.Handle
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(handle *database.Handle) *RepositoryFactory {
	return &RepositoryFactory{handle: handle}
}

// Migrate applies the embedded schema for the configured driver.
func (f *RepositoryFactory) Migrate(ctx context.Context) error {
	switch f.handle.Driver {
	case database.DriverPostgres:
		return migrations.RunPostgres(ctx, f.handle.Pool)
	case database.DriverSQLite:
		return migrations.RunSQLite(ctx, f.handle.SQL)
	default:
		return f.unsupported()
	}
}

// SubscriptionRepository creates the store-backed subscription repository.
func (f *RepositoryFactory) SubscriptionRepository() (billingDomain.SubscriptionRepository, error) {
	switch f.handle.Driver {
	case database.DriverPostgres:
		return billingPersistence.NewPostgresSubscriptionRepository(f.handle.Pool), nil
	case database.DriverSQLite:
		return billingPersistence.NewSQLiteSubscriptionRepository(f.handle.SQL), nil
	default:
		return nil, f.unsupported()
	}
}

// TierChangeRepository creates the upgrade audit repository.
func (f *RepositoryFactory) TierChangeRepository() (billingDomain.TierChangeRepository, error) {
	switch f.handle.Driver {
	case database.DriverPostgres:
		return billingPersistence.NewPostgresTierChangeRepository(f.handle.Pool), nil
	case database.DriverSQLite:
		return billingPersistence.NewSQLiteTierChangeRepository(f.handle.SQL), nil
	default:
		return nil, f.unsupported()
	}
}

// OutboxRepository creates an outbox repository for the configured driver.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	switch f.handle.Driver {
	case database.DriverPostgres:
		return outbox.NewPostgresRepository(f.handle.Pool), nil
	case database.DriverSQLite:
		return outbox.NewSQLiteRepository(f.handle.SQL), nil
	default:
		return nil, f.unsupported()
	}
}

// UnitOfWork creates a unit of work for the configured driver.
func (f *RepositoryFactory) UnitOfWork() (sharedApplication.UnitOfWork, error) {
	switch f.handle.Driver {
	case database.DriverPostgres:
		return sharedPersistence.NewPostgresUnitOfWork(f.handle.Pool), nil
	case database.DriverSQLite:
		return sharedPersistence.NewSQLiteUnitOfWork(f.handle.SQL), nil
	default:
		return nil, f.unsupported()
	}
}

func (f *RepositoryFactory) unsupported() error {
	return fmt.Errorf("unsupported driver: %s", f.handle.Driver)
}
