// Package dealserver is the composition root: it builds a negotiation flow and
// its collaborators from deployment configuration. Transport wrappers (REST,
// CLI, agent frontends) live outside this module and consume the returned flow.
package dealserver

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/agentrange/deal-server/audience"
	"github.com/agentrange/deal-server/catalog"
	"github.com/agentrange/deal-server/catalog/backends/db_fetcher"
	"github.com/agentrange/deal-server/catalog/backends/file_fetcher"
	"github.com/agentrange/deal-server/catalog/caches/memory"
	"github.com/agentrange/deal-server/config"
	"github.com/agentrange/deal-server/dealmetrics"
	"github.com/agentrange/deal-server/deals"
	"github.com/agentrange/deal-server/errortypes"
	"github.com/agentrange/deal-server/ledger"
	"github.com/agentrange/deal-server/pricing"
)

const postgresProductQuery = `SELECT id, base_cpm, floor_cpm, inventory_type, capabilities FROM products WHERE id = $1`

// Server bundles the wired negotiation flow with its metrics registry.
type Server struct {
	Flow    *deals.Flow
	Metrics *dealmetrics.Metrics
}

// New wires a Server from validated configuration. Configuration problems that
// survive config validation (an unreadable product directory, a bad database
// handle) surface here, before any proposal is taken.
func New(cfg *config.Configuration) (*Server, error) {
	fetcher, err := newCatalog(cfg)
	if err != nil {
		return nil, err
	}

	embeddingCache := memory.New(cfg.Audience.CacheSizeBytes, cfg.Audience.CacheTTLSeconds)
	fetcher = catalog.WithCapabilityCache(fetcher, embeddingCache)

	validator := audience.NewValidator(audience.Config{
		ValidThreshold:   cfg.Audience.ValidThreshold,
		NoMatchThreshold: cfg.Audience.NoMatchThreshold,
		GapThreshold:     cfg.Audience.GapThreshold,
	})

	metricsEngine := dealmetrics.NewMetrics(gometrics.NewRegistry())

	flow := deals.NewFlow(deals.Config{
		SellerOrgID:       cfg.SellerOrgID,
		CatalogTimeout:    time.Duration(cfg.Flow.CatalogTimeoutMs) * time.Millisecond,
		ValidationTimeout: time.Duration(cfg.Flow.ValidationTimeoutMs) * time.Millisecond,
	}, fetcher, validator, pricing.NewEngine(cfg.Pricing), newLedger(cfg), metricsEngine)

	return &Server{Flow: flow, Metrics: metricsEngine}, nil
}

func newCatalog(cfg *config.Configuration) (catalog.Fetcher, error) {
	switch strings.ToLower(cfg.Catalog.Type) {
	case "file":
		return file_fetcher.NewFileFetcher(cfg.Catalog.Directory)
	case "postgres":
		db, err := sql.Open("postgres", cfg.Catalog.Postgres.ConnString())
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog database: %v", err)
		}
		return db_fetcher.NewFetcher(db, postgresProductQuery), nil
	default:
		return nil, &errortypes.ConfigurationError{Message: fmt.Sprintf("unknown catalog type %q", cfg.Catalog.Type)}
	}
}

func newLedger(cfg *config.Configuration) ledger.Ledger {
	if strings.ToLower(cfg.Ledger.Type) == "redis" {
		return ledger.NewRedisLedger(cfg.Ledger.Redis)
	}
	return ledger.NewMemoryLedger(cfg.Ledger.Avails)
}
