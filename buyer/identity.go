// Package buyer classifies inbound buyer contexts into pricing tiers.
//
// Identity is a strict hierarchy: advertiser implies agency implies seat implies
// public. Revealing more identity unlocks better pricing, but only once the
// context is authenticated; populated identity fields on an unauthenticated
// context are ignored.
package buyer

// Tier is the buyer classification controlling discounts and price visibility.
type Tier string

const (
	TierPublic     Tier = "public"
	TierSeat       Tier = "seat"
	TierAgency     Tier = "agency"
	TierAdvertiser Tier = "advertiser"
)

// Tiers lists every known tier, least to most specific.
func Tiers() []Tier {
	return []Tier{TierPublic, TierSeat, TierAgency, TierAdvertiser}
}

// Identity carries the buyer identifiers revealed so far. All fields are
// optional; a zero Identity is a valid anonymous buyer. Treat values as
// immutable once constructed.
type Identity struct {
	SeatID         string `json:"seatId,omitempty"`
	AgencyID       string `json:"agencyId,omitempty"`
	AgencyName     string `json:"agencyName,omitempty"`
	AdvertiserID   string `json:"advertiserId,omitempty"`
	AdvertiserName string `json:"advertiserName,omitempty"`
}

// Context is the complete buyer context for pricing and access decisions.
type Context struct {
	Identity        Identity `json:"identity"`
	IsAuthenticated bool     `json:"isAuthenticated"`
}

// ResolveTier classifies a buyer context into a pricing tier.
//
// Authentication gates everything: an unauthenticated context resolves to
// TierPublic no matter which identity fields are populated. Authenticated
// contexts resolve on the most specific identifier present, and the absence of
// all identifiers degrades to TierPublic rather than failing. Pure function,
// no side effects.
func ResolveTier(ctx Context) Tier {
	if !ctx.IsAuthenticated {
		return TierPublic
	}
	if ctx.Identity.AdvertiserID != "" {
		return TierAdvertiser
	}
	if ctx.Identity.AgencyID != "" {
		return TierAgency
	}
	if ctx.Identity.SeatID != "" {
		return TierSeat
	}
	return TierPublic
}

// PricingKey returns the most specific identifier available, for consistent
// pricing lookups across agencies buying for the same advertiser.
func (ctx Context) PricingKey() string {
	if !ctx.IsAuthenticated {
		return "public"
	}
	if ctx.Identity.AdvertiserID != "" {
		return "advertiser:" + ctx.Identity.AdvertiserID
	}
	if ctx.Identity.AgencyID != "" {
		return "agency:" + ctx.Identity.AgencyID
	}
	if ctx.Identity.SeatID != "" {
		return "seat:" + ctx.Identity.SeatID
	}
	return "public"
}
