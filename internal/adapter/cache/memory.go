package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// entry is a tracked request and the time it was admitted
type entry struct {
	req     domain.Request
	addedAt time.Time
}

// RequestCache is an in-memory domain.RequestCache.
// All operations are atomic with respect to a single key.
type RequestCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]entry
	now     func() time.Time
}

// NewRequestCache creates an empty cache
func NewRequestCache() *RequestCache {
	return &RequestCache{
		entries: make(map[uuid.UUID]entry),
		now:     time.Now,
	}
}

// Add stores req, failing with domain.ErrDuplicateKey if its id is tracked
func (c *RequestCache) Add(req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[req.ID()]; exists {
		return domain.ErrDuplicateKey
	}
	c.entries[req.ID()] = entry{req: req, addedAt: c.now()}
	telemetry.CachedRequests.Set(float64(len(c.entries)))
	return nil
}

// GetByKey returns the tracked request, or nil and false
func (c *RequestCache) GetByKey(id uuid.UUID) (domain.Request, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.req, true
}

// Delete removes req, failing with domain.ErrNotFound if its id is not tracked
func (c *RequestCache) Delete(req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[req.ID()]; !exists {
		return domain.ErrNotFound
	}
	delete(c.entries, req.ID())
	telemetry.CachedRequests.Set(float64(len(c.entries)))
	return nil
}

// Contains reports whether id is tracked
func (c *RequestCache) Contains(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[id]
	return ok
}

// Len returns the number of tracked requests
func (c *RequestCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot of tracked ids ordered by admission time
func (c *RequestCache) Entries() []domain.CacheEntry {
	c.mu.RLock()
	out := make([]domain.CacheEntry, 0, len(c.entries))
	for id, e := range c.entries {
		out = append(out, domain.CacheEntry{ID: id, AddedAt: e.addedAt})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}
