package enums

import "slices"

// PlanTier is the SaaS plan a distributor is on.
type PlanTier string

const (
	PlanTierFree       PlanTier = "free"
	PlanTierPro        PlanTier = "pro"
	PlanTierEnterprise PlanTier = "enterprise"
)

var validPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierPro,
	PlanTierEnterprise,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanTier.
func (p PlanTier) IsValid() bool {
	return slices.Contains(validPlanTiers, p)
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	return parse(value, validPlanTiers, "plan tier")
}

// MonthlyPriceCents is the list price charged per month for the tier.
func (p PlanTier) MonthlyPriceCents() int64 {
	switch p {
	case PlanTierPro:
		return 19900
	case PlanTierEnterprise:
		return 49900
	default:
		return 0
	}
}
