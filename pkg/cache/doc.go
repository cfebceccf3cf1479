// Package cache provides a generic, thread-safe LRU (Least Recently Used) cache
// with optional time-based expiry.
//
// The cache evicts the least recently used item once it reaches its configured
// capacity, and, when a TTL is set, treats entries older than the TTL as absent.
// Expiry is lazy: there is no background goroutine, an expired entry is dropped
// by the lookup that finds it (or by an explicit RemoveExpired call).
//
// # Usage
//
//	c := cache.NewLRUCache[string, int](1000, cache.WithTTL(time.Hour))
//
//	c.Put("answer", 42)
//
//	if v, ok := c.Get("answer"); ok {
//		// use v
//	}
//
//	c.Remove("answer")
//	c.Clear()
//
// Put always restarts the lifetime of the entry it writes.
//
// # Testing with a fake clock
//
// WithClock replaces time.Now so expiry can be tested without sleeping:
//
//	now := time.Now()
//	c := cache.NewLRUCache[string, int](10,
//		cache.WithTTL(time.Minute),
//		cache.WithClock(func() time.Time { return now }),
//	)
//
// # Resource Cleanup
//
// SetEvictCallback registers a function called for every entry that leaves the
// cache through capacity eviction, expiry, Remove or Clear.
//
// # Thread Safety
//
// All operations take a single mutex and are safe for concurrent use. Get, Put
// and Remove are O(1); RemoveExpired is O(n).
package cache
