package cache

import (
	"context"
	"sync"
	"time"

	"github.com/alexanderramin/chapterwise/internal/clock"
)

// LoadFunc produces a fresh value for a TTL cache.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// TTL caches the result of a loader for a fixed duration. Each instance is
// owned by its caller; there is no shared registry. Failed loads are not
// cached.
type TTL[T any] struct {
	ttl   time.Duration
	load  LoadFunc[T]
	clock clock.Clock

	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	valid     bool
}

func NewTTL[T any](ttl time.Duration, load LoadFunc[T], clk clock.Clock) *TTL[T] {
	if clk == nil {
		clk = clock.Real()
	}
	return &TTL[T]{ttl: ttl, load: load, clock: clk}
}

// Get returns the cached value, reloading it once the TTL has elapsed.
// Concurrent callers share a single load.
func (c *TTL[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.clock.Now().Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}
	v, err := c.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.fetchedAt = c.clock.Now()
	c.valid = true
	return v, nil
}

// Invalidate forces the next Get to reload.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
}
