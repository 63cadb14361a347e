package domain

// GateRequest names what a gate requires. Feature wins when both fields are set.
type GateRequest struct {
	Feature      *Feature
	RequiredTier *Tier
}

// RequireFeature builds a feature gate.
func RequireFeature(f Feature) GateRequest { return GateRequest{Feature: &f} }

// RequireTier builds a tier gate.
func RequireTier(t Tier) GateRequest { return GateRequest{RequiredTier: &t} }

// Decision is the outcome of a gate check. RequiredTier is only set on denial.
type Decision struct {
	HasAccess    bool  `json:"hasAccess"`
	RequiredTier *Tier `json:"requiredTier,omitempty"`
}

// Resolver answers access questions against a catalog. It never fails.
type Resolver struct {
	catalog *Catalog
}

func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Catalog returns the catalog the resolver consults.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// HasFeature is false for unknown features and unknown tiers.
func (r *Resolver) HasFeature(current Tier, feature Feature) bool {
	return r.catalog.Contains(current, feature)
}

// CanAccessTier compares ranks. An unknown required tier is never satisfied.
func (r *Resolver) CanAccessTier(current, required Tier) bool {
	if !required.IsValid() {
		return false
	}
	return current.Rank() >= required.Rank()
}

// ResolveGate applies the feature check if a feature is named, else the tier check, else grants.
func (r *Resolver) ResolveGate(current Tier, req GateRequest) Decision {
	switch {
	case req.Feature != nil:
		if r.HasFeature(current, *req.Feature) {
			return Decision{HasAccess: true}
		}
		if lowest, ok := r.catalog.MinimumTier(*req.Feature); ok {
			return Decision{RequiredTier: &lowest}
		}
		return Decision{}
	case req.RequiredTier != nil:
		if r.CanAccessTier(current, *req.RequiredTier) {
			return Decision{HasAccess: true}
		}
		required := *req.RequiredTier
		if !required.IsValid() {
			return Decision{}
		}
		return Decision{RequiredTier: &required}
	default:
		return Decision{HasAccess: true}
	}
}

// SuggestedUpgrade is the next tier up, if any.
func (r *Resolver) SuggestedUpgrade(current Tier) (Tier, bool) {
	return current.Next()
}
