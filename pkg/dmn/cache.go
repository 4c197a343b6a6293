package dmn

import (
	"sync"
	"time"

	"github.com/rendis/dmn/pkg/schema"
)

// ResultCache memoizes successful execution results. Implementations must be
// safe for concurrent use; the manager interleaves lookups and inserts from
// arbitrary goroutines.
type ResultCache interface {
	// Get returns the cached result for a key, or nil on miss or expiry.
	Get(key string) *schema.ExecutionResult

	// Set stores a result under a key.
	Set(key string, result *schema.ExecutionResult)

	// Clear drops every entry.
	Clear()

	// PurgeExpired drops entries past their TTL and reports how many went.
	PurgeExpired() int
}

// cacheEntry pairs a result with its insertion time for TTL checks.
type cacheEntry struct {
	result   *schema.ExecutionResult
	cachedAt time.Time
}

// MemoryCache is the default in-memory ResultCache. A TTL of zero means
// entries never expire on read; the janitor still never purges them.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewMemoryCache creates a memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached result, or nil on miss or expiry.
func (c *MemoryCache) Get(key string) *schema.ExecutionResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.ttl > 0 && time.Since(entry.cachedAt) > c.ttl {
		return nil
	}
	return entry.result
}

// Set stores a result.
func (c *MemoryCache) Set(key string, result *schema.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, cachedAt: time.Now()}
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// PurgeExpired drops expired entries. With a zero TTL nothing ever expires.
func (c *MemoryCache) PurgeExpired() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ ResultCache = (*MemoryCache)(nil)
