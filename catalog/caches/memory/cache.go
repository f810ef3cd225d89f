// Package memory caches capability embeddings in process memory so repeated
// audience validations against the same product do not refetch large vectors.
// Prices are deliberately not cacheable through this package.
package memory

import (
	"encoding/json"

	"github.com/coocood/freecache"
	"github.com/golang/glog"

	"github.com/agentrange/deal-server/ucp"
)

// Cache is a size-bounded TTL cache for per-product capability lists.
type Cache struct {
	cache      *freecache.Cache
	ttlSeconds int
}

// New builds a Cache bounded at sizeBytes whose entries expire after
// ttlSeconds (0 means no expiry).
func New(sizeBytes int, ttlSeconds int) *Cache {
	return &Cache{
		cache:      freecache.NewCache(sizeBytes),
		ttlSeconds: ttlSeconds,
	}
}

// Get returns the cached capabilities for a product, or nil on a miss.
func (c *Cache) Get(productID string) []ucp.Capability {
	data, err := c.cache.Get([]byte(productID))
	if err != nil {
		return nil
	}
	var caps []ucp.Capability
	if err := json.Unmarshal(data, &caps); err != nil {
		glog.Errorf("Corrupt capability cache entry for product %s: %v", productID, err)
		c.cache.Del([]byte(productID))
		return nil
	}
	return caps
}

// Save stores the capabilities for a product. Failures are logged and
// swallowed; the cache is best-effort.
func (c *Cache) Save(productID string, caps []ucp.Capability) {
	data, err := json.Marshal(caps)
	if err != nil {
		glog.Errorf("Failed to serialize capabilities for product %s: %v", productID, err)
		return
	}
	if err := c.cache.Set([]byte(productID), data, c.ttlSeconds); err != nil {
		glog.Warningf("Failed to cache capabilities for product %s: %v", productID, err)
	}
}

// Invalidate drops the cached capabilities for a product.
func (c *Cache) Invalidate(productID string) {
	c.cache.Del([]byte(productID))
}
