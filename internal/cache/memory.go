package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a bounded in-process LRU. Entries expire after the
// default TTL, or sooner when Set is given a shorter one.
type MemoryCache struct {
	lru        *expirable.LRU[string, memoryEntry]
	defaultTTL time.Duration
}

// NewMemoryCache creates a cache holding at most maxItems entries.
func NewMemoryCache(maxItems int, defaultTTL time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("max items must be positive, got %d", maxItems)
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryCache{
		lru:        expirable.NewLRU[string, memoryEntry](maxItems, nil, defaultTTL),
		defaultTTL: defaultTTL,
	}, nil
}

// Get implements Store.
func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		c.lru.Remove(key)
		return false, fmt.Errorf("decoding cached value: %w", err)
	}
	return true, nil
}

// Set implements Store.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.defaultTTL {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	c.lru.Add(key, memoryEntry{data: data, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Delete implements Store.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close implements Store.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
