package catalog

import (
	"context"

	"github.com/agentrange/deal-server/catalog/caches/memory"
	"github.com/agentrange/deal-server/ucp"
)

// WithCapabilityCache wraps a Fetcher so capability embedding reads hit the
// in-memory cache first. Product reads always pass through to the backend:
// floor and base prices must be current at call time.
func WithCapabilityCache(inner Fetcher, cache *memory.Cache) Fetcher {
	return &cachedFetcher{inner: inner, cache: cache}
}

type cachedFetcher struct {
	inner Fetcher
	cache *memory.Cache
}

func (f *cachedFetcher) FetchProduct(ctx context.Context, id string) (*Product, error) {
	return f.inner.FetchProduct(ctx, id)
}

func (f *cachedFetcher) FetchCapabilities(ctx context.Context, productID string) ([]ucp.Capability, error) {
	if caps := f.cache.Get(productID); caps != nil {
		return caps, nil
	}
	caps, err := f.inner.FetchCapabilities(ctx, productID)
	if err != nil {
		return nil, err
	}
	f.cache.Save(productID, caps)
	return caps, nil
}
