package file_fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/agentrange/deal-server/catalog"
	"github.com/agentrange/deal-server/ucp"
)

// NewFileFetcher _immediately_ loads product data from local files. These are
// stored in memory for low-latency reads.
//
// This expects each file in the directory to be named "{product_id}.yaml".
// For example, when asked to fetch the product with ID == "ctv-premium", it
// returns the data decoded from "directory/ctv-premium.yaml".
func NewFileFetcher(directory string) (catalog.Fetcher, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}

	products := make(map[string]*catalog.Product, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(directory, entry.Name()))
		if err != nil {
			return nil, err
		}
		var product catalog.Product
		if err := yaml.Unmarshal(data, &product); err != nil {
			return nil, fmt.Errorf("malformed product file %s: %v", entry.Name(), err)
		}
		if err := product.Validate(); err != nil {
			return nil, fmt.Errorf("invalid product file %s: %v", entry.Name(), err)
		}
		products[product.ID] = &product
	}

	return &eagerFetcher{products: products}, nil
}

type eagerFetcher struct {
	products map[string]*catalog.Product
}

func (f *eagerFetcher) FetchProduct(ctx context.Context, id string) (*catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	product, ok := f.products[id]
	if !ok {
		return nil, catalog.NotFoundError{ID: id}
	}
	cpy := *product
	return &cpy, nil
}

func (f *eagerFetcher) FetchCapabilities(ctx context.Context, productID string) ([]ucp.Capability, error) {
	product, err := f.FetchProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return product.Capabilities, nil
}
