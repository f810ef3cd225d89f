package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentrange/deal-server/buyer"
	"github.com/agentrange/deal-server/config"
)

func testPricingConfig() config.Pricing {
	return config.Pricing{
		Currency: "USD",
		Tiers: map[string]config.TierPricing{
			"public":     {Discount: 0.0, ShowExactPrice: false, RangeSpread: 0.2},
			"seat":       {Discount: 0.05, ShowExactPrice: true},
			"agency":     {Discount: 0.10, ShowExactPrice: true, VolumeDiscountsEnabled: true},
			"advertiser": {Discount: 0.15, ShowExactPrice: true, VolumeDiscountsEnabled: true},
		},
		VolumeBreaks: []config.VolumeBreak{
			{MinImpressions: 5000000, Discount: 0.05},
			{MinImpressions: 10000000, Discount: 0.10},
			{MinImpressions: 20000000, Discount: 0.15},
			{MinImpressions: 50000000, Discount: 0.20},
		},
	}
}

func publicContext() buyer.Context {
	return buyer.Context{Identity: buyer.Identity{AdvertiserID: "adv-1"}}
}

func agencyContext() buyer.Context {
	return buyer.Context{Identity: buyer.Identity{AgencyID: "ag-1"}, IsAuthenticated: true}
}

func advertiserContext() buyer.Context {
	return buyer.Context{Identity: buyer.Identity{AgencyID: "ag-1", AdvertiserID: "adv-1"}, IsAuthenticated: true}
}

func TestPriceDisplayPublicRange(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	display := engine.PriceDisplay(20.0, publicContext())

	assert.Equal(t, "range", display.Type)
	assert.Equal(t, 16.0, display.Low)
	assert.Equal(t, 24.0, display.High)
	assert.Equal(t, "USD", display.Currency)
	assert.Equal(t, "$16-$24 CPM", display.Text)
}

func TestPriceDisplayAgencyExact(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	display := engine.PriceDisplay(20.0, agencyContext())

	assert.Equal(t, "exact", display.Type)
	assert.Equal(t, 18.0, display.Price)
	assert.Equal(t, "USD", display.Currency)
}

func TestCalculatePrice(t *testing.T) {
	tt := []struct {
		name               string
		ctx                buyer.Context
		basePrice          float64
		floorCPM           float64
		volume             int64
		wantPrice          float64
		wantTier           buyer.Tier
		wantTierDiscount   float64
		wantVolumeDiscount float64
		wantFloored        bool
	}{
		{
			name:      "public gets no discounts",
			ctx:       publicContext(),
			basePrice: 20.0,
			floorCPM:  5.0,
			volume:    50000000,
			wantPrice: 20.0,
			wantTier:  buyer.TierPublic,
		},
		{
			name:             "agency without volume breakpoint",
			ctx:              agencyContext(),
			basePrice:        20.0,
			floorCPM:         5.0,
			volume:           1000000,
			wantPrice:        18.0,
			wantTier:         buyer.TierAgency,
			wantTierDiscount: 0.10,
		},
		{
			name:               "advertiser with ten million impressions",
			ctx:                advertiserContext(),
			basePrice:          20.0,
			floorCPM:           5.0,
			volume:             10000000,
			wantPrice:          15.30,
			wantTier:           buyer.TierAdvertiser,
			wantTierDiscount:   0.15,
			wantVolumeDiscount: 0.10,
		},
		{
			name:               "largest breakpoint at or below volume wins",
			ctx:                advertiserContext(),
			basePrice:          20.0,
			floorCPM:           5.0,
			volume:             19999999,
			wantPrice:          15.30,
			wantTier:           buyer.TierAdvertiser,
			wantTierDiscount:   0.15,
			wantVolumeDiscount: 0.10,
		},
		{
			name:             "seat tier has volume discounts disabled",
			ctx:              buyer.Context{Identity: buyer.Identity{SeatID: "s-1"}, IsAuthenticated: true},
			basePrice:        20.0,
			floorCPM:         5.0,
			volume:           50000000,
			wantPrice:        19.0,
			wantTier:         buyer.TierSeat,
			wantTierDiscount: 0.05,
		},
		{
			name:               "composed price clamped to floor",
			ctx:                advertiserContext(),
			basePrice:          10.0,
			floorCPM:           9.5,
			volume:             50000000,
			wantPrice:          9.5,
			wantTier:           buyer.TierAdvertiser,
			wantTierDiscount:   0.15,
			wantVolumeDiscount: 0.20,
			wantFloored:        true,
		},
	}

	engine := NewEngine(testPricingConfig())
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.CalculatePrice("ctv-premium", tc.basePrice, tc.floorCPM, tc.ctx, tc.volume)

			assert.Equal(t, tc.wantPrice, result.FinalPrice)
			assert.Equal(t, tc.wantTier, result.Tier)
			assert.Equal(t, tc.wantTierDiscount, result.TierDiscount)
			assert.Equal(t, tc.wantVolumeDiscount, result.VolumeDiscount)
			assert.Equal(t, tc.wantFloored, result.FlooredApplied)
			assert.Equal(t, "USD", result.Currency)
			assert.Equal(t, "ctv-premium", result.ProductID)
		})
	}
}

func TestRationaleFormatIsStable(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	result := engine.CalculatePrice("ctv-premium", 20.0, 5.0, advertiserContext(), 10000000)
	assert.Equal(t,
		"Base price: $20.00 CPM | Advertiser tier: -15% | Volume discount: -10.0% | Final price: $15.30 CPM | (Total savings: 23.5%)",
		result.Rationale)

	floored := engine.CalculatePrice("ctv-premium", 10.0, 9.5, advertiserContext(), 50000000)
	assert.Equal(t,
		"Base price: $10.00 CPM | Advertiser tier: -15% | Volume discount: -20.0% | Floor enforced: $9.50 | Final price: $9.50 CPM | (Total savings: 5.0%)",
		floored.Rationale)
}

func TestDiscountsNeverIncreasePrice(t *testing.T) {
	engine := NewEngine(testPricingConfig())
	volumes := []int64{0, 1, 4999999, 5000000, 10000000, 20000000, 50000000, 100000000}

	for _, tier := range []buyer.Context{publicContext(), agencyContext(), advertiserContext()} {
		for _, volume := range volumes {
			result := engine.CalculatePrice("p", 20.0, 1.0, tier, volume)
			assert.LessOrEqual(t, result.FinalPrice, 20.0)
			assert.GreaterOrEqual(t, result.FinalPrice, 1.0, "floor invariant")
		}
	}
}

func TestVolumeDiscountMonotonicity(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	previous := -1.0
	for _, volume := range []int64{0, 1000, 5000000, 7000000, 10000000, 25000000, 50000000, 90000000} {
		result := engine.CalculatePrice("p", 20.0, 1.0, advertiserContext(), volume)
		assert.GreaterOrEqual(t, result.VolumeDiscount, previous, "volume %d", volume)
		previous = result.VolumeDiscount
	}
}

func TestFloorInvariantHolds(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	for _, floor := range []float64{0.5, 5.0, 18.5, 20.0} {
		result := engine.CalculatePrice("p", 20.0, floor, advertiserContext(), 50000000)
		assert.GreaterOrEqual(t, result.FinalPrice, floor)
	}
}

func TestUnknownTierFallsBackToPublic(t *testing.T) {
	cfg := testPricingConfig()
	delete(cfg.Tiers, "seat")
	engine := NewEngine(cfg)

	result := engine.CalculatePrice("p", 20.0, 1.0, buyer.Context{Identity: buyer.Identity{SeatID: "s-1"}, IsAuthenticated: true}, 0)
	assert.Equal(t, 20.0, result.FinalPrice)
	assert.Equal(t, 0.0, result.TierDiscount)
}

func TestPricingKeyTracksIdentityScope(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	assert.Equal(t, "public", engine.CalculatePrice("p", 20.0, 1.0, publicContext(), 0).PricingKey)
	assert.Equal(t, "agency:ag-1", engine.CalculatePrice("p", 20.0, 1.0, agencyContext(), 0).PricingKey)

	// Two agencies buying for the same advertiser price against the same key.
	other := buyer.Context{Identity: buyer.Identity{AgencyID: "ag-2", AdvertiserID: "adv-1"}, IsAuthenticated: true}
	assert.Equal(t,
		engine.CalculatePrice("p", 20.0, 1.0, advertiserContext(), 0).PricingKey,
		engine.CalculatePrice("p", 20.0, 1.0, other, 0).PricingKey)
}

func TestCeilingClampsComposedPrice(t *testing.T) {
	cfg := testPricingConfig()
	cfg.CeilingCPM = 18.5
	engine := NewEngine(cfg)

	clamped := engine.CalculatePrice("p", 25.0, 5.0, publicContext(), 0)
	assert.Equal(t, 18.5, clamped.FinalPrice)
	assert.True(t, clamped.CeilingApplied)
	assert.False(t, clamped.FlooredApplied)
	assert.Contains(t, clamped.Rationale, "Ceiling enforced: $18.50")

	under := engine.CalculatePrice("p", 20.0, 5.0, agencyContext(), 0)
	assert.Equal(t, 18.0, under.FinalPrice)
	assert.False(t, under.CeilingApplied)
}

func TestCeilingWinsOverFloor(t *testing.T) {
	cfg := testPricingConfig()
	cfg.CeilingCPM = 18.5
	engine := NewEngine(cfg)

	// Advertiser discount takes 20.0 to 17.0, under the 19.0 floor; the floor
	// clamp then lands above the ceiling and the ceiling resolves it.
	result := engine.CalculatePrice("p", 20.0, 19.0, advertiserContext(), 0)
	assert.Equal(t, 18.5, result.FinalPrice)
	assert.True(t, result.FlooredApplied)
	assert.True(t, result.CeilingApplied)
}

func TestCeilingDisabledByDefault(t *testing.T) {
	engine := NewEngine(testPricingConfig())

	result := engine.CalculatePrice("p", 500.0, 5.0, publicContext(), 0)
	assert.Equal(t, 500.0, result.FinalPrice)
	assert.False(t, result.CeilingApplied)
}
