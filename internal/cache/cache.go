// Package cache provides the in-memory resolution cache sitting in front of
// the database on the redirect hot path.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/marcvidal/linkshortener/internal/models"
)

// ResolutionCache maps a lookup key (short code or custom alias, exactly as
// presented by the caller, case-sensitive) to an immutable Link snapshot.
//
// Entries are stored by value: a caller mutating a Link after Put, or one
// returned by Get, never alters the cached copy. There is no TTL - staleness
// is handled by explicit invalidation after every counter increment - but the
// LRU bound keeps memory capped.
type ResolutionCache struct {
	entries *lru.Cache[string, models.Link]
}

// New creates a ResolutionCache holding at most capacity link snapshots.
func New(capacity int) (*ResolutionCache, error) {
	entries, err := lru.New[string, models.Link](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution cache: %w", err)
	}
	return &ResolutionCache{entries: entries}, nil
}

// Get returns a snapshot of the cached link for key, or (nil, false) on miss.
func (c *ResolutionCache) Get(key string) (*models.Link, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	snap := snapshot(entry)
	return &snap, true
}

// Put caches a snapshot of link under key, evicting the least recently used
// entry when the cache is full.
func (c *ResolutionCache) Put(key string, link *models.Link) {
	c.entries.Add(key, snapshot(*link))
}

// Invalidate removes the entry for key, if present.
func (c *ResolutionCache) Invalidate(key string) {
	c.entries.Remove(key)
}

// InvalidateLink removes every entry the link may be cached under, i.e. both
// its short code and its custom alias.
func (c *ResolutionCache) InvalidateLink(link *models.Link) {
	for _, key := range link.CacheKeys() {
		c.entries.Remove(key)
	}
}

// Len returns the current number of cached entries.
func (c *ResolutionCache) Len() int {
	return c.entries.Len()
}

// snapshot copies a Link including its pointer fields, so that no caller can
// reach into a cached entry through a shared pointer.
func snapshot(l models.Link) models.Link {
	if l.CustomAlias != nil {
		alias := *l.CustomAlias
		l.CustomAlias = &alias
	}
	if l.ExpiresAt != nil {
		expires := *l.ExpiresAt
		l.ExpiresAt = &expires
	}
	return l
}
