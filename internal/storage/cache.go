package storage

import (
	"sync"

	"docstore/internal/datastore"
)

type cacheKey struct {
	tenant string
	module string
}

// handleCache holds built stores keyed by (tenant path, module). Each
// tenant has a generation that eviction bumps; a store built under an older
// generation is not inserted.
type handleCache struct {
	mu          sync.RWMutex
	entries     map[cacheKey]datastore.Store
	generations map[string]uint64
}

func newHandleCache() *handleCache {
	return &handleCache{
		entries:     make(map[cacheKey]datastore.Store),
		generations: make(map[string]uint64),
	}
}

// get returns the cached store, or the generation to pass to put.
func (c *handleCache) get(tenant, module string) (datastore.Store, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[cacheKey{tenant, module}]
	return s, c.generations[tenant], ok
}

// put inserts s unless the tenant was evicted since gen was read. When
// another caller inserted first, its store wins and is returned.
func (c *handleCache) put(tenant, module string, s datastore.Store, gen uint64) (datastore.Store, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[tenant] != gen {
		return s, false
	}
	key := cacheKey{tenant, module}
	if existing, ok := c.entries[key]; ok {
		return existing, true
	}
	c.entries[key] = s
	return s, true
}

// evictTenant drops every module of tenant and returns how many were cached.
func (c *handleCache) evictTenant(tenant string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[tenant]++
	n := 0
	for key := range c.entries {
		if key.tenant == tenant {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *handleCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
