// Package distcache is an in-memory TTL cache for synthesized distributions.
// Entries are keyed by challenge date plus point count and are dropped either
// on invalidation (a new score arrived for that date) or by the periodic
// expiry sweep.
package distcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/metrics"
)

type entry struct {
	pd      model.ProcessedDistribution
	date    string
	addedAt time.Time
}

// Cache is a TTL-bounded distribution cache safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	byDate  map[string]map[string]struct{} // date -> keys, for O(1) invalidation

	ttl           time.Duration
	sweepInterval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Cache and starts its expiry sweep goroutine. Call Stop when
// done to release it.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:       make(map[string]entry),
		byDate:        make(map[string]map[string]struct{}),
		ttl:           30 * time.Second,
		sweepInterval: 10 * time.Second,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.sweepLoop()

	return c
}

func cacheKey(date string, pointCount int) string {
	return fmt.Sprintf("%s/%d", date, pointCount)
}

// Get returns the cached distribution for date and pointCount, if present
// and not expired.
func (c *Cache) Get(date string, pointCount int) (model.ProcessedDistribution, bool) {
	key := cacheKey(date, pointCount)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.addedAt) > c.ttl {
		metrics.RecordCacheMiss()
		return model.ProcessedDistribution{}, false
	}
	metrics.RecordCacheHit()
	return e.pd, true
}

// Set stores a distribution under date and pointCount, resetting its TTL.
func (c *Cache) Set(date string, pointCount int, pd model.ProcessedDistribution) {
	key := cacheKey(date, pointCount)

	c.mu.Lock()
	c.entries[key] = entry{pd: pd, date: date, addedAt: time.Now()}
	keys, ok := c.byDate[date]
	if !ok {
		keys = make(map[string]struct{})
		c.byDate[date] = keys
	}
	keys[key] = struct{}{}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.UpdateCacheEntries(n)
}

// Invalidate drops every cached point-count variant for date.
func (c *Cache) Invalidate(date string) {
	c.mu.Lock()
	for key := range c.byDate[date] {
		delete(c.entries, key)
	}
	delete(c.byDate, date)
	n := len(c.entries)
	c.mu.Unlock()

	metrics.UpdateCacheEntries(n)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the expiry sweep goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

func (c *Cache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) sweepExpired() {
	cutoff := time.Now().Add(-c.ttl)

	c.mu.Lock()
	for key, e := range c.entries {
		if e.addedAt.Before(cutoff) {
			delete(c.entries, key)
			if keys, ok := c.byDate[e.date]; ok {
				delete(keys, key)
				if len(keys) == 0 {
					delete(c.byDate, e.date)
				}
			}
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.UpdateCacheEntries(n)
}
