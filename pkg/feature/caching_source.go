package feature

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/togglekit/pkg/cache"
)

// Cache defaults.
const (
	DefaultCacheTTL      = time.Hour
	DefaultCacheCapacity = 10000
)

// CacheOption configures a CachingSource.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// WithCacheTTL sets how long a read result is served from memory.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheCapacity bounds the number of cached features.
func WithCacheCapacity(capacity int) CacheOption {
	return func(c *cacheConfig) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithCacheClock replaces time.Now for expiry checks.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// cachedState is a cache entry. A nil state records that the delegate had
// nothing stored for the feature.
type cachedState struct {
	state *State
}

// CachingSource serves reads from memory for a bounded time and evicts on write.
//
// Absent states are cached too, so a feature created through another process
// may stay invisible for up to one TTL. Writes through the same CachingSource
// are visible to every read that starts after the write returned.
type CachingSource struct {
	delegate Source
	cache    *cache.LRUCache[Feature, cachedState]
	group    singleflight.Group

	// mu orders cache fills against evictions; generations counts the writes
	// seen per feature so that a fetch started before a write cannot refill
	// the cache with the old state.
	mu          sync.Mutex
	epoch       uint64
	generations map[Feature]uint64
}

// stamp identifies the cache generation a fetch started in.
type stamp struct {
	epoch, gen uint64
}

// NewCachingSource wraps delegate with a read cache.
// Panics if delegate is nil.
func NewCachingSource(delegate Source, opts ...CacheOption) *CachingSource {
	if delegate == nil {
		panic("feature: caching source delegate cannot be nil")
	}

	cfg := cacheConfig{
		ttl:      DefaultCacheTTL,
		capacity: DefaultCacheCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &CachingSource{
		delegate: delegate,
		cache: cache.NewLRUCache[Feature, cachedState](cfg.capacity,
			cache.WithTTL(cfg.ttl),
			cache.WithClock(cfg.now),
		),
		generations: make(map[Feature]uint64),
	}
}

// Read returns the cached state of f, fetching it from the delegate on a miss
// or after expiry. Concurrent misses for the same feature share one fetch.
//
// The shared fetch is detached from the cancellation of the caller that
// started it; each caller stops waiting when its own ctx is done.
func (c *CachingSource) Read(ctx context.Context, f Feature) (*State, error) {
	if entry, ok := c.cache.Get(f); ok {
		return entry.state.Copy(), nil
	}

	started := c.generation(f)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(f), func() (any, error) {
		state, err := c.delegate.Read(fetchCtx, f)
		if err != nil {
			return nil, err
		}
		c.fill(f, started, state)
		return state, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*State).Copy(), nil
	}
}

// Write persists s through the delegate and evicts the cached entry on success.
func (c *CachingSource) Write(ctx context.Context, s *State) error {
	if err := ValidateState(s); err != nil {
		return err
	}
	if err := c.delegate.Write(ctx, s); err != nil {
		return err
	}
	c.Invalidate(s.Feature())
	return nil
}

// Invalidate drops the cached entry of f; the next read goes to the delegate.
func (c *CachingSource) Invalidate(f Feature) {
	c.mu.Lock()
	c.generations[f]++
	c.cache.Remove(f)
	c.mu.Unlock()

	c.group.Forget(string(f))
}

// Purge drops every cached entry.
func (c *CachingSource) Purge() {
	c.mu.Lock()
	c.epoch++
	c.cache.Clear()
	c.mu.Unlock()
}

// Features delegates to the wrapped source when it can list features.
func (c *CachingSource) Features(ctx context.Context) ([]Feature, error) {
	lister, ok := c.delegate.(Lister)
	if !ok {
		return nil, ErrUnsupported
	}
	return lister.Features(ctx)
}

func (c *CachingSource) generation(f Feature) stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stamp{epoch: c.epoch, gen: c.generations[f]}
}

// fill caches state unless f was written after the fetch started.
func (c *CachingSource) fill(f Feature, started stamp, state *State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != started.epoch || c.generations[f] != started.gen {
		return
	}
	c.cache.Put(f, cachedState{state: state.Copy()})
}
