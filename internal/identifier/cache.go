// Package identifier acquires the third-party device fingerprint once per
// SDK start: cache first, then key exchange and a bounded retry loop against
// the fingerprint provider.
package identifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkilian/beacon/internal/kvstore"
)

// CacheKey is the store key the entry is persisted under.
const CacheKey = "beacon.identifier.cache"

// NoKey marks an entry that never held an identifier.
const NoKey = "NO_KEY"

// CacheEntry is the persisted identifier with its expiry.
type CacheEntry struct {
	Key string `json:"key"`
	Exp int64  `json:"exp"`
}

// DefaultEntry is what an empty store reads as.
func DefaultEntry() CacheEntry {
	return CacheEntry{Key: NoKey, Exp: 0}
}

// Valid reports whether the entry can be used at now.
func (e CacheEntry) Valid(now time.Time) bool {
	if e.Key == "" || e.Key == NoKey {
		return false
	}
	return now.UnixMilli() <= e.Exp
}

// Cache reads and writes the entry through a kvstore.Store.
type Cache struct {
	store kvstore.Store
}

// NewCache wraps store.
func NewCache(store kvstore.Store) *Cache {
	return &Cache{store: store}
}

// Load returns the stored entry, or DefaultEntry if there is none. A corrupt
// value is reported as an error alongside DefaultEntry.
func (c *Cache) Load(ctx context.Context) (CacheEntry, error) {
	raw, ok, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		return DefaultEntry(), err
	}
	if !ok {
		return DefaultEntry(), nil
	}
	var e CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return DefaultEntry(), fmt.Errorf("corrupt identifier cache entry: %w", err)
	}
	return e, nil
}

// Save persists e.
func (c *Cache) Save(ctx context.Context, e CacheEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, CacheKey, raw)
}
