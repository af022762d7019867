// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/recoblocks/internal/metrics"
)

// DefaultInFlightMaxEntries bounds an InFlight cache when no size is given.
const DefaultInFlightMaxEntries = 500

// InFlightStats reports InFlight cache effectiveness. A lookup is a hit when
// a fresh result is cached or an identical call is already running.
type InFlightStats struct {
	Hit         int64   `json:"hit"`
	Miss        int64   `json:"miss"`
	InFlightHit int64   `json:"in_flight_hit"`
	HitRate     float64 `json:"hit_rate"`
	Entries     int     `json:"entries"`
}

type inflightEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// InFlight deduplicates concurrent identical calls and caches their results
// for a TTL. Entries are evicted oldest-inserted first once MaxEntries is
// exceeded. Errors are shared with concurrent callers but never cached.
type InFlight[T any] struct {
	name       string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]inflightEntry[T]
	order   []string
	pending map[string]struct{}
	stats   InFlightStats
}

// NewInFlight creates an InFlight cache. name labels metrics.
func NewInFlight[T any](name string, ttl time.Duration, maxEntries int) *InFlight[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultInFlightMaxEntries
	}
	return &InFlight[T]{
		name:       name,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]inflightEntry[T]),
		pending:    make(map[string]struct{}),
	}
}

// Do returns the cached result for key, joins a running call for key, or
// runs fn. fromCache reports whether the result came from the cache or a
// shared call. If ctx is done first, Do returns ctx.Err() and the running
// call keeps going for other waiters.
func (c *InFlight[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (value T, fromCache bool, err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Before(e.expiresAt) {
			c.stats.Hit++
			c.mu.Unlock()
			metrics.RecordCacheLookup(c.name, true)
			return e.value, true, nil
		}
		c.removeLocked(key)
	}
	// DoChan is called under mu, and a call leaves pending and the group
	// together under mu, so pending always mirrors what DoChan will join.
	_, joining := c.pending[key]
	if joining {
		c.stats.Hit++
		c.stats.InFlightHit++
	} else {
		c.stats.Miss++
		c.pending[key] = struct{}{}
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Detached so one caller's cancellation does not fail the others.
		v, err := fn(context.WithoutCancel(ctx))

		c.mu.Lock()
		delete(c.pending, key)
		c.group.Forget(key)
		if err == nil {
			c.storeLocked(key, v)
		}
		c.mu.Unlock()
		return v, err
	})
	c.mu.Unlock()
	metrics.RecordCacheLookup(c.name, joining)

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, joining, res.Err
		}
		return res.Val.(T), joining, nil
	}
}

// Get returns a fresh cached value without running anything.
func (c *InFlight[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Stats returns a snapshot of hit/miss counters.
func (c *InFlight[T]) Stats() InFlightStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	out.Entries = len(c.entries)
	if total := out.Hit + out.Miss; total > 0 {
		out.HitRate = float64(out.Hit) / float64(total)
	}
	return out
}

// storeLocked must be called with mu held.
func (c *InFlight[T]) storeLocked(key string, v T) {
	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	}
	c.entries[key] = inflightEntry[T]{value: v, expiresAt: c.now().Add(c.ttl)}
	c.order = append(c.order, key)

	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			metrics.CacheEvictions.WithLabelValues(c.name).Inc()
		}
	}
}

// removeLocked must be called with mu held.
func (c *InFlight[T]) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
