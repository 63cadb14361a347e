package domain

import "errors"

var (
	// ErrInvalidTier is returned when external input does not name a known tier.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrInvalidFeature is returned when external input does not name a known feature.
	ErrInvalidFeature = errors.New("invalid feature")
	// ErrDowngradeNotAllowed rejects a tier change to a lower rank.
	ErrDowngradeNotAllowed = errors.New("downgrade not allowed")
	// ErrSubscriptionNotFound is returned by repositories when an organization has no row.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrPersistenceFailure wraps any store error surfaced by the upgrade path.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrCatalogNotMonotonic means a higher tier lacks a feature granted below it.
	ErrCatalogNotMonotonic = errors.New("catalog is not monotonic")
)
