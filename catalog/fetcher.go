// Package catalog defines how the deal server reads products and their
// audience capability embeddings. Backends return current floor and base prices
// at call time; prices are never cached across proposals.
package catalog

import (
	"context"
	"fmt"

	"github.com/agentrange/deal-server/errortypes"
	"github.com/agentrange/deal-server/ucp"
)

// Product is one sellable inventory product.
type Product struct {
	ID            string           `json:"id" yaml:"id"`
	BaseCPM       float64          `json:"baseCpm" yaml:"base_cpm"`
	FloorCPM      float64          `json:"floorCpm" yaml:"floor_cpm"`
	InventoryType string           `json:"inventoryType" yaml:"inventory_type"`
	Capabilities  []ucp.Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// Validate checks the structural invariants of a decoded product.
func (p *Product) Validate() error {
	if p.ID == "" {
		return &errortypes.BadInput{Message: "product id is required"}
	}
	if p.BaseCPM <= 0 {
		return &errortypes.BadInput{Message: fmt.Sprintf("product %s base_cpm must be positive, got %v", p.ID, p.BaseCPM)}
	}
	if p.FloorCPM < 0 || p.FloorCPM > p.BaseCPM {
		return &errortypes.BadInput{Message: fmt.Sprintf("product %s floor_cpm %v must be within [0, base_cpm %v]", p.ID, p.FloorCPM, p.BaseCPM)}
	}
	for i := range p.Capabilities {
		if emb := p.Capabilities[i].Embedding; emb != nil {
			if err := emb.Validate(); err != nil {
				return &errortypes.BadInput{Message: fmt.Sprintf("product %s capability %q: %v", p.ID, p.Capabilities[i].Tag, err)}
			}
		}
	}
	return nil
}

// Fetcher knows how to read products and their capability embeddings.
//
// Implementations must respect the context deadline; the negotiation flow
// bounds every catalog lookup with a timeout.
type Fetcher interface {
	FetchProduct(ctx context.Context, id string) (*Product, error)
	FetchCapabilities(ctx context.Context, productID string) ([]ucp.Capability, error)
}

// NotFoundError is returned when a product id has no catalog entry.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ID)
}
