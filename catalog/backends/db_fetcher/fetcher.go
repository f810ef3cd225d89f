package db_fetcher

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/golang/glog"
	"github.com/lib/pq"

	"github.com/agentrange/deal-server/catalog"
	"github.com/agentrange/deal-server/ucp"
)

// NewFetcher returns a Fetcher reading products from a Postgres catalog.
//
// The query must select (id, base_cpm, floor_cpm, inventory_type, capabilities)
// for a single $1 product id, with capabilities stored as a JSON document.
func NewFetcher(db *sql.DB, query string) catalog.Fetcher {
	if db == nil {
		glog.Fatalf("The Postgres catalog fetcher requires a database connection. Please report this as a bug.")
	}
	if query == "" {
		glog.Fatalf("The Postgres catalog fetcher requires a product query. Please report this as a bug.")
	}
	return &dbFetcher{
		db:    db,
		query: query,
	}
}

// dbFetcher fetches products from a database. This should be instantiated
// through the NewFetcher() function.
type dbFetcher struct {
	db    *sql.DB
	query string
}

func (f *dbFetcher) FetchProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var product catalog.Product
	var rawCapabilities []byte

	row := f.db.QueryRowContext(ctx, f.query, id)
	err := row.Scan(&product.ID, &product.BaseCPM, &product.FloorCPM, &product.InventoryType, &rawCapabilities)
	if err == sql.ErrNoRows {
		return nil, catalog.NotFoundError{ID: id}
	}
	if err != nil {
		if err != context.DeadlineExceeded && !isBadInput(err) {
			glog.Errorf("Error reading from product catalog DB: %s", err.Error())
		}
		return nil, err
	}

	if len(rawCapabilities) > 0 {
		if err := json.Unmarshal(rawCapabilities, &product.Capabilities); err != nil {
			glog.Errorf("Malformed capabilities JSON for product %s: %v", id, err)
			return nil, err
		}
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}
	return &product, nil
}

func (f *dbFetcher) FetchCapabilities(ctx context.Context, productID string) ([]ucp.Capability, error) {
	product, err := f.FetchProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return product.Capabilities, nil
}

// isBadInput identifies Postgres data exceptions, which are due to bad
// requests rather than catalog health.
func isBadInput(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code.Class() == "22"
}
