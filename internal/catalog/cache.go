package catalog

import (
	"context"
	"sync"
	"time"
)

type Lister interface {
	List(ctx context.Context) ([]Resource, error)
}

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Cache is a read-through cache over a Lister. It is Stale until the
// first List, and again after Invalidate or once ttl has elapsed since
// the last scan; a ttl <= 0 never expires. Refreshes only happen inside
// List. The scan holds the write lock, so Invalidate waits for it.
type Cache struct {
	lister Lister
	ttl    time.Duration
	now    Clock

	mu      sync.RWMutex
	fresh   bool
	scanned time.Time
	items   []Resource
	scans   int
}

func NewCache(lister Lister, ttl time.Duration, clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{lister: lister, ttl: ttl, now: clock}
}

func (c *Cache) valid() bool {
	return c.fresh && (c.ttl <= 0 || c.now().Sub(c.scanned) < c.ttl)
}

// List returns the cached catalog, rescanning first if it is Stale.
// The returned slice is the caller's to modify.
func (c *Cache) List(ctx context.Context) ([]Resource, error) {
	c.mu.RLock()
	if c.valid() {
		items := cloneAll(c.items)
		c.mu.RUnlock()
		return items, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return cloneAll(c.items), nil
	}
	started := c.now()
	items, err := c.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	c.items = items
	c.scanned = started
	c.fresh = true
	c.scans++
	return cloneAll(items), nil
}

// Invalidate marks the cache Stale. Every List that starts after
// Invalidate returns rescans.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fresh = false
	c.mu.Unlock()
}

// Fresh reports whether the next List would be served from memory.
func (c *Cache) Fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid()
}

// Scans counts the rescans performed so far.
func (c *Cache) Scans() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scans
}

func cloneAll(rs []Resource) []Resource {
	out := make([]Resource, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
