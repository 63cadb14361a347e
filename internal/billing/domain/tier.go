package domain

import (
	"fmt"
	"strings"
)

// Tier is an ordered subscription level.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// allTiers is in rank order.
var allTiers = []Tier{TierBasic, TierPremium, TierEnterprise}

// AllTiers returns every tier, lowest first.
func AllTiers() []Tier {
	return append([]Tier(nil), allTiers...)
}

// ParseTier normalizes s and maps it onto a known tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

func (t Tier) String() string { return string(t) }

// IsValid reports whether t is one of the known tiers.
func (t Tier) IsValid() bool {
	return t.Rank() > 0
}

// Rank orders tiers for comparison only. Unknown tiers rank 0 and are never granted anything.
func (t Tier) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierPremium:
		return 2
	case TierEnterprise:
		return 3
	default:
		return 0
	}
}

// Next returns the immediate higher tier, or false at the top.
func (t Tier) Next() (Tier, bool) {
	for i, candidate := range allTiers {
		if candidate == t && i+1 < len(allTiers) {
			return allTiers[i+1], true
		}
	}
	return "", false
}

// TierInfo is display metadata for listings.
type TierInfo struct {
	Tier        Tier   `json:"tier"`
	DisplayName string `json:"displayName"`
	Tagline     string `json:"tagline"`
}

var tierInfo = map[Tier]TierInfo{
	TierBasic:      {TierBasic, "Basic", "Document capture and patient fitness tracking"},
	TierPremium:    {TierPremium, "Premium", "Trends, bulk processing and certificate expiry alerts"},
	TierEnterprise: {TierEnterprise, "Enterprise", "Benchmarking, multi-site management and API access"},
}

// Info returns display metadata, falling back to the raw value for unknown tiers.
func (t Tier) Info() TierInfo {
	if info, ok := tierInfo[t]; ok {
		return info
	}
	return TierInfo{Tier: t, DisplayName: string(t)}
}
