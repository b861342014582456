// Package cache holds computed pipeline results per slot, refreshing them at
// most once per TTL no matter how many requests arrive together.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL      = time.Minute
	DefaultStaleTTL = 10 * time.Minute
)

// Generation is one published result. Payloads are shared between readers
// and must not be mutated.
type Generation[T any] struct {
	ID        uint64
	FetchedAt time.Time
	Payload   T
	// Stale is set on a returned copy when a refresh failed and an older
	// generation was served instead.
	Stale bool
}

// Loader computes a fresh payload.
type Loader[T any] func(ctx context.Context) (T, error)

// Options configures a Cache.
type Options struct {
	TTL time.Duration
	// StaleTTL bounds how old a generation may be and still be served when
	// a refresh fails. Zero disables stale serving.
	StaleTTL time.Duration
}

// Cache is a keyed set of generations with per-key load deduplication.
type Cache[T any] struct {
	opts  Options
	mu    sync.Mutex
	slots map[string]*Generation[T]
	group singleflight.Group
	seq   atomic.Uint64
	loads atomic.Int64
	now   func() time.Time
	log   *zap.Logger
}

// New creates a Cache.
func New[T any](opts Options, log *zap.Logger) *Cache[T] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache[T]{
		opts:  opts,
		slots: make(map[string]*Generation[T]),
		now:   time.Now,
		log:   log,
	}
}

// SetClock overrides the time source.
func (c *Cache[T]) SetClock(now func() time.Time) { c.now = now }

// Loads returns how many loader calls have started.
func (c *Cache[T]) Loads() int64 { return c.loads.Load() }

// Peek returns the current generation for key without loading.
func (c *Cache[T]) Peek(key string) (Generation[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.slots[key]
	if !ok {
		return Generation[T]{}, false
	}
	return *g, true
}

// Invalidate drops the generation held for key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.slots, key)
	c.mu.Unlock()
}

// Get returns the generation for key, loading it when missing or older than
// the TTL. Concurrent misses share one load. A caller whose ctx ends stops
// waiting but the shared load carries on for the others.
func (c *Cache[T]) Get(ctx context.Context, key string, load Loader[T]) (Generation[T], error) {
	if g, ok := c.Peek(key); ok && c.now().Sub(g.FetchedAt) < c.opts.TTL {
		return g, nil
	}
	return c.Refresh(ctx, key, load)
}

// Refresh loads key regardless of age, joining a load already in flight.
func (c *Cache[T]) Refresh(ctx context.Context, key string, load Loader[T]) (Generation[T], error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(shared, key, load)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Generation[T]{}, res.Err
		}
		return res.Val.(Generation[T]), nil
	case <-ctx.Done():
		return Generation[T]{}, ctx.Err()
	}
}

func (c *Cache[T]) load(ctx context.Context, key string, load Loader[T]) (Generation[T], error) {
	c.loads.Add(1)
	start := c.now()
	payload, err := load(ctx)
	if err != nil {
		if prev, ok := c.Peek(key); ok && c.opts.StaleTTL > 0 && c.now().Sub(prev.FetchedAt) <= c.opts.StaleTTL {
			c.log.Warn("refresh failed, serving stale generation",
				zap.String("slot", key),
				zap.Uint64("generation", prev.ID),
				zap.Duration("age", c.now().Sub(prev.FetchedAt)),
				zap.Error(err))
			prev.Stale = true
			return prev, nil
		}
		c.log.Error("refresh failed", zap.String("slot", key), zap.Error(err))
		return Generation[T]{}, err
	}

	g := &Generation[T]{ID: c.seq.Add(1), FetchedAt: c.now(), Payload: payload}
	c.mu.Lock()
	c.slots[key] = g
	c.mu.Unlock()
	c.log.Debug("cache slot refreshed",
		zap.String("slot", key),
		zap.Uint64("generation", g.ID),
		zap.Duration("elapsed", c.now().Sub(start)))
	return *g, nil
}
