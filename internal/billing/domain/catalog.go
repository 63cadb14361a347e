package domain

import (
	"fmt"
	"slices"
)

// Catalog maps each tier to the features it grants. It is immutable once built.
type Catalog struct {
	grants map[Tier]map[Feature]struct{}
	sorted map[Tier][]Feature
}

// NewCatalog builds cumulative feature sets: each tier gets the previous tier's set plus its own additions.
func NewCatalog(additions map[Tier][]Feature) (*Catalog, error) {
	for tier := range additions {
		if !tier.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
		}
	}

	c := &Catalog{
		grants: make(map[Tier]map[Feature]struct{}, len(allTiers)),
		sorted: make(map[Tier][]Feature, len(allTiers)),
	}
	prev := map[Feature]struct{}{}
	for _, tier := range allTiers {
		set := make(map[Feature]struct{}, len(prev)+len(additions[tier]))
		for f := range prev {
			set[f] = struct{}{}
		}
		for _, f := range additions[tier] {
			set[f] = struct{}{}
		}
		c.grants[tier] = set
		c.sorted[tier] = sortedFeatures(set)
		prev = set
	}
	return c, nil
}

func sortedFeatures(set map[Feature]struct{}) []Feature {
	out := make([]Feature, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Verify checks that every tier's set contains the set of the tier below it.
func (c *Catalog) Verify() error {
	for i := 1; i < len(allTiers); i++ {
		lower, higher := allTiers[i-1], allTiers[i]
		for f := range c.grants[lower] {
			if _, ok := c.grants[higher][f]; !ok {
				return fmt.Errorf("%w: %s grants %s but %s does not", ErrCatalogNotMonotonic, lower, f, higher)
			}
		}
	}
	return nil
}

// FeaturesForTier returns a sorted copy; unknown tiers get nothing.
func (c *Catalog) FeaturesForTier(tier Tier) []Feature {
	return slices.Clone(c.sorted[tier])
}

// Contains reports whether tier grants feature.
func (c *Catalog) Contains(tier Tier, feature Feature) bool {
	_, ok := c.grants[tier][feature]
	return ok
}

// MinimumTier returns the lowest tier granting feature.
func (c *Catalog) MinimumTier(feature Feature) (Tier, bool) {
	for _, tier := range allTiers {
		if c.Contains(tier, feature) {
			return tier, true
		}
	}
	return "", false
}

// Unlocked returns the features granted by to but not by from, sorted.
func (c *Catalog) Unlocked(from, to Tier) []Feature {
	var out []Feature
	for _, f := range c.sorted[to] {
		if !c.Contains(from, f) {
			out = append(out, f)
		}
	}
	return out
}

var defaultCatalog = func() *Catalog {
	c, err := NewCatalog(map[Tier][]Feature{
		TierBasic: {
			FeatureDocumentUpload, FeatureCertificateExtraction, FeaturePatientRecords,
			FeatureFitnessTracking, FeatureSimpleCharts, FeatureBasicReports,
		},
		TierPremium: {
			FeatureTrendAnalysis, FeatureAdvancedReports, FeatureBulkUpload,
			FeatureReportExport, FeatureExpiryAlerts,
		},
		TierEnterprise: {
			FeatureCompetitiveBenchmarking, FeatureMultiSiteManagement, FeatureAPIAccess,
			FeatureCustomBranding, FeatureAuditLog,
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}()

// DefaultCatalog returns the product catalog shared by the whole process.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
