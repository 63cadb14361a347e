package app

import (
	"context"
	"fmt"
	"log/slog"

	billingApp "github.com/occusafe/occusafe/internal/billing/application"
	billingDomain "github.com/occusafe/occusafe/internal/billing/domain"
	billingMessaging "github.com/occusafe/occusafe/internal/billing/infrastructure/messaging"
	billingPersistence "github.com/occusafe/occusafe/internal/billing/infrastructure/persistence"
	sharedApplication "github.com/occusafe/occusafe/internal/shared/application"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/database"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/eventbus"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	"github.com/occusafe/occusafe/pkg/config"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Database
	Database *database.Handle

	// Redis (optional)
	RedisClient *redis.Client

	// Repositories
	SubscriptionRepo  billingDomain.SubscriptionRepository
	SubscriptionStore *billingPersistence.ResilientSubscriptionRepository
	SubscriptionCache *billingPersistence.CachedSubscriptionRepository
	TierChangeRepo    billingDomain.TierChangeRepository
	OutboxRepo        outbox.Repository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Billing
	Resolver       *billingDomain.Resolver
	BillingService *billingApp.Service
}

// NewContainer opens the configured store, applies migrations and wires the billing service.
// An empty DATABASE_URL selects the local SQLite file.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	catalog := billingDomain.DefaultCatalog()
	if err := catalog.Verify(); err != nil {
		return nil, err
	}
	c.Resolver = billingDomain.NewResolver(catalog)

	handle, err := database.Open(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DBMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.Database = handle
	logger.Info("connected to database", "driver", handle.Driver)
	c.Health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, handle.Ping))

	factory := NewRepositoryFactory(handle)
	if err := factory.Migrate(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := c.wireRepositories(factory); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		if err := c.connectRedis(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	if c.RedisClient != nil {
		c.SubscriptionCache = billingPersistence.NewCachedSubscriptionRepository(
			c.SubscriptionRepo, c.RedisClient, cfg.SubscriptionCacheTTL, logger, c.Metrics,
		)
		c.SubscriptionRepo = c.SubscriptionCache
	}

	c.BillingService = billingApp.NewService(
		c.SubscriptionRepo,
		c.TierChangeRepo,
		c.OutboxRepo,
		c.UnitOfWork,
		c.Resolver,
		logger,
		c.Metrics,
	)
	return c, nil
}

func (c *Container) wireRepositories(factory *RepositoryFactory) error {
	store, err := factory.SubscriptionRepository()
	if err != nil {
		return fmt.Errorf("failed to create subscription repository: %w", err)
	}
	c.SubscriptionStore = billingPersistence.NewResilientSubscriptionRepository(store, billingPersistence.BreakerConfig{
		MaxFailures: c.Config.BreakerMaxFailures,
		OpenTimeout: c.Config.BreakerOpenTimeout,
	}, c.Logger, c.Metrics)
	c.SubscriptionRepo = c.SubscriptionStore

	if c.TierChangeRepo, err = factory.TierChangeRepository(); err != nil {
		return fmt.Errorf("failed to create tier change repository: %w", err)
	}
	if c.OutboxRepo, err = factory.OutboxRepository(); err != nil {
		return fmt.Errorf("failed to create outbox repository: %w", err)
	}
	if c.UnitOfWork, err = factory.UnitOfWork(); err != nil {
		return fmt.Errorf("failed to create unit of work: %w", err)
	}
	return nil
}

// connectRedis is fatal outside development; in development the cache is simply skipped.
func (c *Container) connectRedis(ctx context.Context) error {
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, subscription cache disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, subscription cache disabled", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

// EventHandlers returns the consumers this process runs for domain events.
func (c *Container) EventHandlers() []eventbus.Handler {
	var handlers []eventbus.Handler
	if c.SubscriptionCache != nil {
		handlers = append(handlers, billingMessaging.NewCacheInvalidator(c.SubscriptionCache, c.Logger, c.Metrics))
	}
	return handlers
}

// NewEventPublisher connects to RabbitMQ when configured. Without a broker the
// in-process bus delivers straight to EventHandlers.
func (c *Container) NewEventPublisher() (eventbus.Publisher, error) {
	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		if err == nil {
			return publisher, nil
		}
		if !c.Config.IsDevelopment() {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, delivering events in process", "error", err)
	}

	bus := eventbus.NewInProcessBus(c.Logger)
	for _, h := range c.EventHandlers() {
		bus.Register(h)
	}
	return bus, nil
}

// NewOutboxProcessor builds the relay that moves outbox rows onto publisher.
func (c *Container) NewOutboxProcessor(publisher eventbus.Publisher) *outbox.Processor {
	pc := outbox.DefaultProcessorConfig()
	if c.Config.OutboxPollInterval > 0 {
		pc.PollInterval = c.Config.OutboxPollInterval
	}
	if c.Config.OutboxBatchSize > 0 {
		pc.BatchSize = c.Config.OutboxBatchSize
	}
	if c.Config.OutboxMaxRetries > 0 {
		pc.MaxRetries = c.Config.OutboxMaxRetries
	}
	if c.Config.OutboxCleanupInterval > 0 {
		pc.CleanupInterval = c.Config.OutboxCleanupInterval
	}
	if c.Config.OutboxRetention > 0 {
		pc.Retention = c.Config.OutboxRetention
	}
	return outbox.NewProcessor(c.OutboxRepo, publisher, pc, c.Logger, c.Metrics)
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.Database != nil {
		if err := c.Database.Close(); err != nil {
			c.Logger.Warn("error closing database", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.Database.Driver)
		}
	}
}
