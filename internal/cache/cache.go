// SPDX-License-Identifier: Apache-2.0

// Package cache provides a byte-oriented response cache with a fixed TTL.
// The API server uses it to avoid re-rendering query results between updates;
// an update clears the cache wholesale.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a TTL-bounded key/value store for rendered responses.
type Cache interface {
	// Get retrieves a value. Returns false if absent or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value under the cache's TTL.
	Set(key string, value []byte)
	// Clear removes all values.
	Clear()
	// Stats returns cache performance counters.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

const defaultMemoryEntries = 1024

// memoryCache is an LRU-backed in-memory implementation of Cache.
type memoryCache struct {
	lru    *expirable.LRU[string, []byte]
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewMemoryCache creates an in-memory cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{
		lru: expirable.NewLRU[string, []byte](defaultMemoryEntries, nil, ttl),
	}
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v, true
}

func (c *memoryCache) Set(key string, value []byte) {
	c.lru.Add(key, value)
	c.sets.Add(1)
}

func (c *memoryCache) Clear() {
	c.lru.Purge()
}

func (c *memoryCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
}

// noOpCache disables caching.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (noOpCache) Get(string) ([]byte, bool) { return nil, false }
func (noOpCache) Set(string, []byte)        {}
func (noOpCache) Clear()                    {}
func (noOpCache) Stats() Stats              { return Stats{} }
