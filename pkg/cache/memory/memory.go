// Package memory is an in-process completion cache.
package memory

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pario-ai/codegen/pkg/cache"
	"github.com/pario-ai/codegen/pkg/models"
)

// Cache is a process-lifetime completion cache backed by ttlcache.
// With a zero TTL and zero capacity entries are never evicted.
type Cache struct {
	items   *ttlcache.Cache[cache.Key, models.Completion]
	ttl     time.Duration
	started bool
}

// New creates a Cache. ttl of zero disables expiry; capacity of zero disables
// the size bound.
func New(ttl time.Duration, capacity uint64) *Cache {
	opts := []ttlcache.Option[cache.Key, models.Completion]{
		ttlcache.WithTTL[cache.Key, models.Completion](ttl),
		ttlcache.WithDisableTouchOnHit[cache.Key, models.Completion](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[cache.Key, models.Completion](capacity))
	}
	c := &Cache{
		items: ttlcache.New[cache.Key, models.Completion](opts...),
		ttl:   ttl,
	}
	if ttl > 0 {
		go c.items.Start()
		c.started = true
	}
	return c
}

// Get retrieves a cached completion.
func (c *Cache) Get(_ context.Context, key cache.Key) (*models.Completion, bool) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	v := item.Value()
	return &v, true
}

// Put stores a completion.
func (c *Cache) Put(_ context.Context, key cache.Key, comp *models.Completion) error {
	v := *comp
	v.Cached = false
	c.items.Set(key, v, ttlcache.DefaultTTL)
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	m := c.items.Metrics()
	return models.CacheStats{
		Backend: "memory",
		Entries: int64(c.items.Len()),
		Hits:    int64(m.Hits),
		Misses:  int64(m.Misses),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	if expiredOnly {
		c.items.DeleteExpired()
		return nil
	}
	c.items.DeleteAll()
	return nil
}

// Close stops the expiry loop.
func (c *Cache) Close() error {
	if c.started {
		c.items.Stop()
		c.started = false
	}
	return nil
}
