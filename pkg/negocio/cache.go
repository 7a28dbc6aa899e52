package negocio

import (
	"context"
	"sync"
	"time"
)

// Cache is the interface for negocio caching implementations.
type Cache interface {
	Get(ctx context.Context, key string) (*Negocio, bool)
	Set(ctx context.Context, key string, n *Negocio, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type cacheItem struct {
	negocio   *Negocio
	expiresAt time.Time
}

// inMemoryCache is a TTL cache with lazy expiry. Entries are evicted on read
// when stale; the map is bounded by the tenant population, which is small
// compared to request volume.
type inMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
}

// NewInMemoryCache creates the default in-memory cache.
func NewInMemoryCache() Cache {
	return &inMemoryCache{items: make(map[string]cacheItem)}
}

func (c *inMemoryCache) Get(_ context.Context, key string) (*Negocio, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.negocio, true
}

func (c *inMemoryCache) Set(_ context.Context, key string, n *Negocio, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = cacheItem{negocio: n, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *inMemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
