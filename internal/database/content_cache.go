package database

import (
	"context"
	"slices"
	"sync"
)

// ContentCache is a read-through cache of the content table. The store
// invalidates it after every committed mutation; readers always get a copy.
type ContentCache struct {
	mu     sync.RWMutex
	items  []ContentItem
	loaded bool
	// gen is bumped on Invalidate so a load racing with a write is discarded.
	gen  uint64
	load func(ctx context.Context) ([]ContentItem, error)
}

// NewContentCache creates a cache filled on demand by load.
func NewContentCache(load func(ctx context.Context) ([]ContentItem, error)) *ContentCache {
	return &ContentCache{load: load}
}

// Get returns the cached items, loading them when the cache is cold.
func (c *ContentCache) Get(ctx context.Context) ([]ContentItem, error) {
	c.mu.RLock()
	if c.loaded {
		items := slices.Clone(c.items)
		c.mu.RUnlock()
		return items, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.items = items
		c.loaded = true
	}
	c.mu.Unlock()

	return slices.Clone(items), nil
}

// Invalidate drops the cached items.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.items = nil
	c.loaded = false
	c.gen++
	c.mu.Unlock()
}
