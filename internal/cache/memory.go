package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// TTLCache implements in-memory caching with pure TTL eviction.
// Expired entries stay in memory until a Get observes them or SweepExpired
// runs; there is no background janitor unless StartSweeper is called.
type TTLCache struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

var _ Store = (*TTLCache)(nil)

// NewTTLCache creates a cache. A non-positive defaultTTL falls back to DefaultTTL.
func NewTTLCache(defaultTTL time.Duration) *TTLCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &TTLCache{
		cache: gocache.New(defaultTTL, 0),
	}
}

// Set stores a value. A non-positive ttl uses the cache default.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(key, value, ttl)
}

// Get retrieves a value, evicting it if it has expired.
// An entry expires strictly after its deadline: a Get at exactly
// set time + ttl still hits.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val, found := c.cache.Get(key); found {
		return val, true
	}
	c.cache.Delete(key)
	return nil, false
}

// Delete removes a value and reports whether a live entry was removed
func (c *TTLCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, found := c.cache.Get(key)
	c.cache.Delete(key)
	return found
}

// Clear removes all values from the cache
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
}

// Size returns the number of stored entries, including expired ones not yet evicted
func (c *TTLCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.ItemCount()
}

// SweepExpired evicts every expired entry and returns how many were removed
func (c *TTLCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.cache.ItemCount()
	c.cache.DeleteExpired()
	return before - c.cache.ItemCount()
}

// StartSweeper runs SweepExpired every interval until ctx is done
func StartSweeper(ctx context.Context, store Store, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := store.SweepExpired(); n > 0 {
					logger.Debug("swept expired cache entries", zap.Int("count", n), zap.Int("remaining", store.Size()))
				}
			}
		}
	}()
}
