package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
	sharedApplication "github.com/occusafe/occusafe/internal/shared/application"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/redis/go-redis/v9"
)

const subscriptionKeyPrefix = "occusafe:subscription:"

// DefaultSubscriptionCacheTTL bounds how long a snapshot can outlive a write it missed.
const DefaultSubscriptionCacheTTL = 5 * time.Minute

// SubscriptionKey is the redis key holding an organization's cached snapshot.
func SubscriptionKey(orgID uuid.UUID) string {
	return subscriptionKeyPrefix + orgID.String()
}

// cachedSubscription is the JSON form kept in redis.
type cachedSubscription struct {
	ID               uuid.UUID   `json:"id"`
	OrganizationID   uuid.UUID   `json:"organization_id"`
	Tier             domain.Tier `json:"tier"`
	Status           string      `json:"status"`
	TrialEndsAt      *time.Time  `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd *time.Time  `json:"current_period_end,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// CachedSubscriptionRepository puts a redis cache-aside layer in front of another repository.
// Redis errors never fail a call; the inner repository stays the source of truth.
// Reads inside a unit of work skip redis so writes are always decided on stored state,
// and writes evict the snapshot only once their transaction has committed.
type CachedSubscriptionRepository struct {
	inner   domain.SubscriptionRepository
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics observability.Metrics
}

func NewCachedSubscriptionRepository(
	inner domain.SubscriptionRepository,
	client *redis.Client,
	ttl time.Duration,
	logger *slog.Logger,
	metrics observability.Metrics,
) *CachedSubscriptionRepository {
	if ttl <= 0 {
		ttl = DefaultSubscriptionCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CachedSubscriptionRepository{inner: inner, client: client, ttl: ttl, logger: logger, metrics: metrics}
}

func (r *CachedSubscriptionRepository) FindByOrganizationID(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	if sharedApplication.InUnitOfWork(ctx) {
		return r.inner.FindByOrganizationID(ctx, orgID)
	}
	key := SubscriptionKey(orgID)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if s, decodeErr := decodeCachedSubscription(raw); decodeErr == nil {
			r.metrics.Counter(observability.MetricCacheHits, 1, observability.T("cache", "subscription"))
			return s, nil
		}
		r.logger.WarnContext(ctx, "dropping unreadable cached subscription", "key", key)
	case !errors.Is(err, redis.Nil):
		r.logger.WarnContext(ctx, "subscription cache read failed", "key", key, "error", err)
	}
	r.metrics.Counter(observability.MetricCacheMisses, 1, observability.T("cache", "subscription"))

	s, err := r.inner.FindByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, s)
	return s, nil
}

func (r *CachedSubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) (bool, error) {
	created, err := r.inner.Create(ctx, s)
	if err != nil {
		return false, err
	}
	r.invalidate(ctx, s.OrganizationID)
	return created, nil
}

func (r *CachedSubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	if err := r.inner.Update(ctx, s); err != nil {
		return err
	}
	r.invalidate(ctx, s.OrganizationID)
	return nil
}

// Invalidate drops the cached snapshot for orgID.
func (r *CachedSubscriptionRepository) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	return r.client.Del(ctx, SubscriptionKey(orgID)).Err()
}

func (r *CachedSubscriptionRepository) invalidate(ctx context.Context, orgID uuid.UUID) {
	sharedApplication.AfterCommit(ctx, func(ctx context.Context) {
		if err := r.Invalidate(ctx, orgID); err != nil {
			r.logger.WarnContext(ctx, "subscription cache invalidation failed", "organization_id", orgID, "error", err)
		}
	})
}

func (r *CachedSubscriptionRepository) store(ctx context.Context, s *domain.Subscription) {
	raw, err := json.Marshal(cachedSubscription{
		ID:               s.ID,
		OrganizationID:   s.OrganizationID,
		Tier:             s.Tier,
		Status:           string(s.Status),
		TrialEndsAt:      s.TrialEndsAt,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, SubscriptionKey(s.OrganizationID), raw, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "subscription cache write failed", "organization_id", s.OrganizationID, "error", err)
	}
}

func decodeCachedSubscription(raw []byte) (*domain.Subscription, error) {
	var c cachedSubscription
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if !c.Tier.IsValid() {
		return nil, domain.ErrInvalidTier
	}
	status, err := domain.ParseStatus(c.Status)
	if err != nil {
		return nil, err
	}
	return &domain.Subscription{
		ID:               c.ID,
		OrganizationID:   c.OrganizationID,
		Tier:             c.Tier,
		Status:           status,
		TrialEndsAt:      c.TrialEndsAt,
		CurrentPeriodEnd: c.CurrentPeriodEnd,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}

var _ domain.SubscriptionRepository = (*CachedSubscriptionRepository)(nil)
