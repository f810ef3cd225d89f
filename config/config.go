package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	currencyunit "golang.org/x/text/currency"

	"github.com/agentrange/deal-server/errortypes"
)

// Configuration is the static deployment configuration supplied at startup.
// Malformed configuration is fatal at startup, never at request time.
type Configuration struct {
	SellerOrgID string   `mapstructure:"seller_org_id"`
	Pricing     Pricing  `mapstructure:"pricing"`
	Audience    Audience `mapstructure:"audience"`
	Flow        Flow     `mapstructure:"flow"`
	Catalog     Catalog  `mapstructure:"catalog"`
	Ledger      Ledger   `mapstructure:"ledger"`
}

// Pricing is the per-deployment tier table and volume breakpoint schedule.
type Pricing struct {
	Currency     string                 `mapstructure:"currency"`
	Tiers        map[string]TierPricing `mapstructure:"tiers"`
	VolumeBreaks []VolumeBreak          `mapstructure:"volume_breaks"`

	// CeilingCPM caps every computed price when positive. Zero disables it.
	CeilingCPM float64 `mapstructure:"ceiling_cpm"`
}

// TierPricing configures one access tier.
type TierPricing struct {
	Discount               float64 `mapstructure:"discount"`
	VolumeDiscountsEnabled bool    `mapstructure:"volume_discounts_enabled"`
	ShowExactPrice         bool    `mapstructure:"show_exact_price"`
	RangeSpread            float64 `mapstructure:"range_spread"`
}

// VolumeBreak is one step of the volume discount schedule. Breakpoints must be
// strictly increasing and their discounts non-decreasing: a monotonic step
// function, no interpolation.
type VolumeBreak struct {
	MinImpressions int64   `mapstructure:"min_impressions"`
	Discount       float64 `mapstructure:"discount"`
}

// Audience holds the coverage validator thresholds and embedding cache sizing.
type Audience struct {
	ValidThreshold   float64 `mapstructure:"valid_threshold"`
	NoMatchThreshold float64 `mapstructure:"no_match_threshold"`
	GapThreshold     float64 `mapstructure:"gap_threshold"`
	CacheSizeBytes   int     `mapstructure:"cache_size_bytes"`
	CacheTTLSeconds  int     `mapstructure:"cache_ttl_seconds"`
}

// Flow bounds the negotiation flow's external lookups.
type Flow struct {
	CatalogTimeoutMs    uint64 `mapstructure:"catalog_timeout_ms"`
	ValidationTimeoutMs uint64 `mapstructure:"validation_timeout_ms"`
}

// Catalog selects the product catalog backend.
type Catalog struct {
	Type      string   `mapstructure:"type"` // "file" or "postgres"
	Directory string   `mapstructure:"directory"`
	Postgres  Postgres `mapstructure:"postgres"`
}

// Postgres holds the connection settings for the catalog database backend.
type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Dbname   string `mapstructure:"dbname"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// ConnString builds a lib/pq connection string.
func (p Postgres) ConnString() string {
	uri := ""
	if p.Host != "" {
		uri += fmt.Sprintf("host=%s ", p.Host)
	}
	if p.Port > 0 {
		uri += fmt.Sprintf("port=%d ", p.Port)
	}
	if p.User != "" {
		uri += fmt.Sprintf("user=%s ", p.User)
	}
	if p.Password != "" {
		uri += fmt.Sprintf("password=%s ", p.Password)
	}
	if p.Dbname != "" {
		uri += fmt.Sprintf("dbname=%s ", p.Dbname)
	}
	return uri + "sslmode=disable"
}

// Ledger selects the inventory allocation ledger backend.
type Ledger struct {
	Type string `mapstructure:"type"` // "memory" or "redis"

	// Avails seeds the in-memory ledger with per-product impression capacity.
	// Ignored by the Redis backend, which is seeded externally.
	Avails map[string]int64 `mapstructure:"avails"`
	Redis  RedisLedger      `mapstructure:"redis"`
}

// RedisLedger holds the connection settings for the Redis allocation ledger.
type RedisLedger struct {
	Addr      string `mapstructure:"addr"`
	DB        int    `mapstructure:"db"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	TimeoutMs uint64 `mapstructure:"timeout_ms"`
}

// New uses viper to load and validate the deal server configuration.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, &errortypes.ConfigurationError{Message: fmt.Sprintf("viper failed to unmarshal config: %v", err)}
	}
	if errs := c.validate(); errortypes.ContainsFatalError(errs) {
		return nil, errortypes.NewAggregateErrors("invalid configuration", errortypes.FatalOnly(errs))
	}
	return &c, nil
}

func (cfg *Configuration) validate() []error {
	var errs []error

	if cfg.SellerOrgID == "" {
		errs = append(errs, &errortypes.ConfigurationError{Message: "seller_org_id is required"})
	}

	if _, err := currencyunit.ParseISO(cfg.Pricing.Currency); err != nil {
		errs = append(errs, &errortypes.ConfigurationError{
			Message: fmt.Sprintf("pricing.currency %q is not a valid ISO 4217 code", cfg.Pricing.Currency),
		})
	}

	if cfg.Pricing.CeilingCPM < 0 {
		errs = append(errs, &errortypes.ConfigurationError{
			Message: fmt.Sprintf("pricing.ceiling_cpm must not be negative, got %v", cfg.Pricing.CeilingCPM),
		})
	}

	for name, tier := range cfg.Pricing.Tiers {
		if tier.Discount < 0 || tier.Discount >= 1 {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("pricing.tiers.%s.discount must be within [0,1), got %v", name, tier.Discount),
			})
		}
		if tier.RangeSpread < 0 || tier.RangeSpread >= 1 {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("pricing.tiers.%s.range_spread must be within [0,1), got %v", name, tier.RangeSpread),
			})
		}
	}

	for i, vb := range cfg.Pricing.VolumeBreaks {
		if vb.MinImpressions <= 0 {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("pricing.volume_breaks[%d].min_impressions must be positive", i),
			})
		}
		if vb.Discount < 0 || vb.Discount >= 1 {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("pricing.volume_breaks[%d].discount must be within [0,1), got %v", i, vb.Discount),
			})
		}
		if i == 0 {
			continue
		}
		prev := cfg.Pricing.VolumeBreaks[i-1]
		if vb.MinImpressions <= prev.MinImpressions {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("pricing.volume_breaks must be strictly increasing: breakpoint %d (%d) <= breakpoint %d (%d)",
					i, vb.MinImpressions, i-1, prev.MinImpressions),
			})
		}
		if vb.Discount < prev.Discount {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("pricing.volume_breaks discounts must be non-decreasing: breakpoint %d (%v) < breakpoint %d (%v)",
					i, vb.Discount, i-1, prev.Discount),
			})
		}
	}

	for name, bound := range map[string]float64{
		"audience.valid_threshold":    cfg.Audience.ValidThreshold,
		"audience.no_match_threshold": cfg.Audience.NoMatchThreshold,
		"audience.gap_threshold":      cfg.Audience.GapThreshold,
	} {
		if bound < 0 || bound > 1 {
			errs = append(errs, &errortypes.ConfigurationError{
				Message: fmt.Sprintf("%s must be within [0,1], got %v", name, bound),
			})
		}
	}

	switch strings.ToLower(cfg.Catalog.Type) {
	case "file", "postgres":
	default:
		errs = append(errs, &errortypes.ConfigurationError{
			Message: fmt.Sprintf("catalog.type must be one of [file, postgres], got %q", cfg.Catalog.Type),
		})
	}

	switch strings.ToLower(cfg.Ledger.Type) {
	case "memory", "redis":
	default:
		errs = append(errs, &errortypes.ConfigurationError{
			Message: fmt.Sprintf("ledger.type must be one of [memory, redis], got %q", cfg.Ledger.Type),
		})
	}

	return errs
}

// SetupViper sets the defaults observed in production deployments: public
// buyers see ±20% price ranges, authenticated tiers get 5/10/15% discounts, and
// the volume schedule steps at 5M/10M/20M/50M impressions.
func SetupViper(v *viper.Viper) {
	v.SetDefault("pricing.currency", "USD")
	v.SetDefault("pricing.ceiling_cpm", 0.0)

	v.SetDefault("pricing.tiers.public.discount", 0.0)
	v.SetDefault("pricing.tiers.public.volume_discounts_enabled", false)
	v.SetDefault("pricing.tiers.public.show_exact_price", false)
	v.SetDefault("pricing.tiers.public.range_spread", 0.2)

	v.SetDefault("pricing.tiers.seat.discount", 0.05)
	v.SetDefault("pricing.tiers.seat.volume_discounts_enabled", false)
	v.SetDefault("pricing.tiers.seat.show_exact_price", true)

	v.SetDefault("pricing.tiers.agency.discount", 0.10)
	v.SetDefault("pricing.tiers.agency.volume_discounts_enabled", true)
	v.SetDefault("pricing.tiers.agency.show_exact_price", true)

	v.SetDefault("pricing.tiers.advertiser.discount", 0.15)
	v.SetDefault("pricing.tiers.advertiser.volume_discounts_enabled", true)
	v.SetDefault("pricing.tiers.advertiser.show_exact_price", true)

	v.SetDefault("pricing.volume_breaks", []map[string]interface{}{
		{"min_impressions": 5000000, "discount": 0.05},
		{"min_impressions": 10000000, "discount": 0.10},
		{"min_impressions": 20000000, "discount": 0.15},
		{"min_impressions": 50000000, "discount": 0.20},
	})

	v.SetDefault("audience.valid_threshold", 0.5)
	v.SetDefault("audience.no_match_threshold", 0.3)
	v.SetDefault("audience.gap_threshold", 0.3)
	v.SetDefault("audience.cache_size_bytes", 16*1024*1024)
	v.SetDefault("audience.cache_ttl_seconds", 300)

	v.SetDefault("flow.catalog_timeout_ms", 500)
	v.SetDefault("flow.validation_timeout_ms", 250)

	v.SetDefault("catalog.type", "file")
	v.SetDefault("catalog.directory", "products")
	v.SetDefault("catalog.postgres.port", 5432)

	v.SetDefault("ledger.type", "memory")
	v.SetDefault("ledger.redis.timeout_ms", 200)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("DEAL_SERVER")
	v.AutomaticEnv()
}
