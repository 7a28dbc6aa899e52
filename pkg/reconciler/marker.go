package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepMarker deduplicates sweep side effects. TryAcquire returns true the
// first time a key is claimed within its TTL; a false return means another
// sweep run (or another instance) already handled it.
type SweepMarker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisMarker backs SweepMarker with SETNX so multiple server instances
// share one notification budget.
type RedisMarker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisMarker wraps a redis client. Keys are namespaced under prefix.
func NewRedisMarker(client redis.UniversalClient, prefix string) *RedisMarker {
	if prefix == "" {
		prefix = "reconciler"
	}
	return &RedisMarker{client: client, prefix: prefix}
}

func (m *RedisMarker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+":"+key, 1, ttl).Result()
}

// MemoryMarker is a single-process SweepMarker for tests and development.
type MemoryMarker struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryMarker creates an in-memory marker.
func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryMarker) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expiry, ok := m.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.seen[key] = now.Add(ttl)
	return true, nil
}
