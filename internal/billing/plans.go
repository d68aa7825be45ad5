package billing

import (
	"strings"

	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/enums"
)

// Plan is one entry of the static SaaS catalog.
type Plan struct {
	Tier              enums.PlanTier `json:"tier"`
	Name              string         `json:"name"`
	MonthlyPriceCents int64          `json:"monthly_price_cents"`
	Features          []string       `json:"features"`
}

var catalog = []Plan{
	{
		Tier:              enums.PlanTierFree,
		Name:              "Free",
		MonthlyPriceCents: enums.PlanTierFree.MonthlyPriceCents(),
		Features:          []string{"Inventory and point of sale", "Up to 1 delivery driver", "Public storefront"},
	},
	{
		Tier:              enums.PlanTierPro,
		Name:              "Pro",
		MonthlyPriceCents: enums.PlanTierPro.MonthlyPriceCents(),
		Features:          []string{"Everything in Free", "Unlimited drivers and routes", "AI insights and projections"},
	},
	{
		Tier:              enums.PlanTierEnterprise,
		Name:              "Enterprise",
		MonthlyPriceCents: enums.PlanTierEnterprise.MonthlyPriceCents(),
		Features:          []string{"Everything in Pro", "Multiple depots", "Priority support"},
	},
}

// Plans returns a copy of the plan catalog.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// PriceBook maps paid tiers to Stripe price ids.
type PriceBook map[enums.PlanTier]string

func NewPriceBook(cfg config.StripeConfig) PriceBook {
	return PriceBook{
		enums.PlanTierPro:        strings.TrimSpace(cfg.ProPriceID),
		enums.PlanTierEnterprise: strings.TrimSpace(cfg.EnterprisePriceID),
	}
}

// PriceFor returns the Stripe price id of a paid tier.
func (b PriceBook) PriceFor(tier enums.PlanTier) (string, bool) {
	price, ok := b[tier]
	return price, ok && price != ""
}

// TierFor resolves the tier a Stripe price id belongs to.
func (b PriceBook) TierFor(priceID string) (enums.PlanTier, bool) {
	for tier, price := range b {
		if price != "" && price == priceID {
			return tier, true
		}
	}
	return "", false
}
