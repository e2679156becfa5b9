package api

import (
	"context"
	"sync"
	"time"
)

// DefaultHealthCacheTTL bounds how often /api/health reaches Postgres and Redis
const DefaultHealthCacheTTL = 10 * time.Second

// healthCache remembers the last probe result per dependency so frequent
// health polls do not hit the backing stores each time.
type healthCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]healthEntry
}

type healthEntry struct {
	err       error
	checkedAt time.Time
}

func newHealthCache(ttl time.Duration) *healthCache {
	return &healthCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]healthEntry),
	}
}

// check returns the cached result for name, running probe when it is stale.
// A zero TTL disables caching.
func (c *healthCache) check(ctx context.Context, name string, probe HealthCheck) error {
	c.mu.Lock()
	entry, ok := c.entries[name]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.checkedAt) < c.ttl {
		return entry.err
	}

	err := probe(ctx)

	c.mu.Lock()
	c.entries[name] = healthEntry{err: err, checkedAt: c.now()}
	c.mu.Unlock()
	return err
}
