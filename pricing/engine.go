// Package pricing computes tiered deal prices: tier discount, volume discount,
// floor enforcement, and the price display appropriate for the buyer's tier.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/agentrange/deal-server/buyer"
	"github.com/agentrange/deal-server/config"
)

// Result is the outcome of one price calculation.
type Result struct {
	ProductID      string     `json:"productId"`
	FinalPrice     float64    `json:"finalPrice"`
	Tier           buyer.Tier `json:"tier"`
	TierDiscount   float64    `json:"tierDiscount"`
	VolumeDiscount float64    `json:"volumeDiscount"`
	Currency       string     `json:"currency"`
	FlooredApplied bool       `json:"flooredApplied"`
	CeilingApplied bool       `json:"ceilingApplied"`
	Rationale      string     `json:"rationale"`

	// PricingKey is the buyer's most specific identity scope, so two agencies
	// buying for the same advertiser price against the same key.
	PricingKey string `json:"pricingKey"`
}

// Display is a buyer-appropriate price presentation: a range for public buyers,
// an exact tier-discounted price for authenticated ones.
type Display struct {
	Type     string  `json:"type"` // "exact" or "range"
	Price    float64 `json:"price,omitempty"`
	Low      float64 `json:"low,omitempty"`
	High     float64 `json:"high,omitempty"`
	Currency string  `json:"currency"`
	Text     string  `json:"display,omitempty"`
}

// Engine computes prices from the deployment's tier table.
type Engine interface {
	CalculatePrice(productID string, basePrice float64, floorCPM float64, ctx buyer.Context, volume int64) Result
	PriceDisplay(basePrice float64, ctx buyer.Context) Display
}

type engine struct {
	cfg config.Pricing
}

// NewEngine builds an Engine from a validated pricing configuration. The table
// is injected at construction time; there is no hot reload.
func NewEngine(cfg config.Pricing) Engine {
	return &engine{cfg: cfg}
}

func (e *engine) tierConfig(tier buyer.Tier) config.TierPricing {
	if tc, ok := e.cfg.Tiers[string(tier)]; ok {
		return tc
	}
	return e.cfg.Tiers[string(buyer.TierPublic)]
}

// CalculatePrice composes discounts multiplicatively, tier first, then volume:
// the volume incentive scales with the already tier-adjusted price. The
// composed price is clamped to the floor with FlooredApplied set so callers can
// counter-offer instead of silently accepting a clamped number. Rounding to two
// decimal places happens only at the final output step.
func (e *engine) CalculatePrice(productID string, basePrice float64, floorCPM float64, ctx buyer.Context, volume int64) Result {
	tier := buyer.ResolveTier(ctx)
	tc := e.tierConfig(tier)

	price := basePrice
	tierDiscount := tc.Discount
	if tierDiscount > 0 {
		price = price * (1 - tierDiscount)
	}

	volumeDiscount := 0.0
	if tc.VolumeDiscountsEnabled && volume > 0 {
		volumeDiscount = volumeDiscountFor(e.cfg.VolumeBreaks, volume)
		if volumeDiscount > 0 {
			price = price * (1 - volumeDiscount)
		}
	}

	floored := false
	if floorCPM > 0 && price < floorCPM {
		price = floorCPM
		floored = true
	}

	// The ceiling is applied after the floor, so a misconfigured floor above
	// the ceiling resolves to the ceiling.
	ceilinged := false
	if e.cfg.CeilingCPM > 0 && price > e.cfg.CeilingCPM {
		price = e.cfg.CeilingCPM
		ceilinged = true
	}

	final := round2(price)

	return Result{
		ProductID:      productID,
		FinalPrice:     final,
		Tier:           tier,
		TierDiscount:   tierDiscount,
		VolumeDiscount: volumeDiscount,
		Currency:       e.cfg.Currency,
		FlooredApplied: floored,
		CeilingApplied: ceilinged,
		Rationale:      buildRationale(basePrice, final, tier, tierDiscount, volumeDiscount, floored, floorCPM, ceilinged, e.cfg.CeilingCPM),
		PricingKey:     ctx.PricingKey(),
	}
}

// volumeDiscountFor selects the largest breakpoint at or below volume. The
// schedule is a step function; there is no interpolation between breakpoints.
func volumeDiscountFor(breaks []config.VolumeBreak, volume int64) float64 {
	discount := 0.0
	for _, vb := range breaks {
		if volume >= vb.MinImpressions {
			discount = vb.Discount
		}
	}
	return discount
}

// buildRationale renders the ordered trace of each discount step applied. The
// format is stable; golden tests depend on it.
func buildRationale(basePrice, finalPrice float64, tier buyer.Tier, tierDiscount, volumeDiscount float64, floored bool, floorCPM float64, ceilinged bool, ceilingCPM float64) string {
	parts := []string{fmt.Sprintf("Base price: $%.2f CPM", basePrice)}

	if tierDiscount > 0 {
		parts = append(parts, fmt.Sprintf("%s tier: -%.0f%%", titleTier(tier), tierDiscount*100))
	}
	if volumeDiscount > 0 {
		parts = append(parts, fmt.Sprintf("Volume discount: -%.1f%%", volumeDiscount*100))
	}
	if floored {
		parts = append(parts, fmt.Sprintf("Floor enforced: $%.2f", floorCPM))
	}
	if ceilinged {
		parts = append(parts, fmt.Sprintf("Ceiling enforced: $%.2f", ceilingCPM))
	}

	parts = append(parts, fmt.Sprintf("Final price: $%.2f CPM", finalPrice))

	if basePrice > 0 {
		if savings := 1 - finalPrice/basePrice; savings > 0 {
			parts = append(parts, fmt.Sprintf("(Total savings: %.1f%%)", savings*100))
		}
	}

	return strings.Join(parts, " | ")
}

func titleTier(tier buyer.Tier) string {
	s := string(tier)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PriceDisplay returns the presentation for the buyer's tier. Public buyers see
// a range around the base price rather than a point price; authenticated tiers
// see the exact tier-discounted price.
func (e *engine) PriceDisplay(basePrice float64, ctx buyer.Context) Display {
	tier := buyer.ResolveTier(ctx)
	tc := e.tierConfig(tier)

	if tc.ShowExactPrice {
		price := round2(basePrice * (1 - tc.Discount))
		return Display{
			Type:     "exact",
			Price:    price,
			Currency: e.cfg.Currency,
			Text:     fmt.Sprintf("$%.2f CPM", price),
		}
	}

	low := round2(basePrice * (1 - tc.RangeSpread))
	high := round2(basePrice * (1 + tc.RangeSpread))
	return Display{
		Type:     "range",
		Low:      low,
		High:     high,
		Currency: e.cfg.Currency,
		Text:     fmt.Sprintf("$%.0f-$%.0f CPM", low, high),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
