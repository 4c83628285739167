// Package cache provides a cost-bounded LRU cache with deferred eviction.
//
// Every entry carries a cost (nominally bytes) and a delete function
// supplied by its tenant. When the total cost exceeds the capacity, a
// cleanup pass walks the entries from least to most recently used:
//
//   - an entry without a grace timer gets one and is skipped,
//   - an entry whose grace period has not elapsed is skipped,
//   - otherwise the delete function is called; Keep clears the timer and
//     keeps the entry, Free removes it.
//
// The pass stops as soon as the total cost is back under the capacity.
// An entry is therefore never freed less than one grace period after it was
// last considered for eviction, and a tenant can hold on to an entry for as
// long as it answers Keep.
//
// Cache is safe for concurrent use. Delete functions run with the cache
// lock held and must not call back into the cache.
package cache

import (
	"sync"
	"time"
)

// Release is the answer of a delete function.
type Release uint8

const (
	// Free lets the cache drop the entry.
	Free Release = iota
	// Keep asks the cache to retain the entry for now.
	Keep
)

func (r Release) String() string {
	if r == Keep {
		return "keep"
	}
	return "free"
}

// DeleteFunc is called when an entry is about to be dropped. A nil
// DeleteFunc always frees.
type DeleteFunc[V any] func(V) Release

// MaxKeyLen is the maximum length of a key.
const MaxKeyLen = 256

// DefaultGracePeriod is the grace period of caches created without
// WithGracePeriod.
const DefaultGracePeriod = 2 * time.Second

type entry[V any] struct {
	key   string
	value V
	cost  int64
	del   DeleteFunc[V]

	// Zero when no grace timer is pending.
	grace time.Time

	prev, next *entry[V]
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	grace time.Duration
	now   func() time.Time
}

// WithGracePeriod sets the minimum time between the moment an entry is
// first selected for eviction and the moment it can be freed.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		o.grace = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Cache is a cost-bounded LRU cache of values of type V keyed by opaque
// byte strings.
// Cache must not be copied after creation (has mutex).
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[V]
	lru      lruList[V]
	size     int64
	capacity int64
	opts     options

	hits      uint64
	misses    uint64
	evictions uint64
	keeps     uint64
}

// New creates a cache that holds up to capacity units of cost.
func New[V any](capacity int64, opts ...Option) *Cache[V] {
	o := options{grace: DefaultGracePeriod, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries:  make(map[string]*entry[V]),
		capacity: capacity,
		opts:     o,
	}
}

// Add inserts value under key. If the total cost then exceeds the
// capacity, a cleanup pass runs before the new entry is linked, so the new
// entry itself is never a candidate.
//
// Adding an existing key replaces the previous value; its delete function
// is called and its answer ignored.
func (c *Cache[V]) Add(key []byte, value V, cost int64, del DeleteFunc[V]) {
	if len(key) > MaxKeyLen {
		panic("cache: key too long")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[string(key)]; ok {
		c.unlink(old)
		if old.del != nil {
			old.del(old.value)
		}
	}
	c.size += cost
	if c.size > c.capacity {
		c.cleanup()
	}
	e := &entry[V]{key: string(key), value: value, cost: cost, del: del}
	c.entries[e.key] = e
	c.lru.PushFront(e)
}

// Get returns the value stored under key, clears its grace timer and marks
// it as the most recently used.
func (c *Cache[V]) Get(key []byte) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[string(key)]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	e.grace = time.Time{}
	c.lru.MoveToFront(e)
	return e.value, true
}

// Contains reports whether key is cached, without touching its recency.
func (c *Cache[V]) Contains(key []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[string(key)]
	return ok
}

// SetCost updates the cost of an entry once it is known, and runs a
// cleanup pass if the cache is over capacity.
func (c *Cache[V]) SetCost(key []byte, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[string(key)]
	if !ok {
		return
	}
	c.size += cost - e.cost
	e.cost = cost
	if c.size > c.capacity {
		c.cleanup()
	}
}

// Cleanup runs a cleanup pass if the cache is over capacity. Callers
// invoke it periodically, typically once per frame, to reconcile
// transient overshoot.
func (c *Cache[V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size > c.capacity {
		c.cleanup()
	}
}

// Purge drops every entry for which match returns true, regardless of
// grace timers. Entries whose delete function answers Keep stay. It returns
// the number of entries dropped.
func (c *Cache[V]) Purge(match func(key []byte, value V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for e := c.lru.Oldest(); e != nil; {
		prev := e.prev
		if match([]byte(e.key), e.value) {
			if c.release(e) {
				n++
			}
		}
		e = prev
	}
	return n
}

// CurrentSize returns the total cost of the cached entries.
func (c *Cache[V]) CurrentSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the capacity of the cache.
func (c *Cache[V]) Capacity() int64 {
	return c.capacity
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats contains cache statistics.
type Stats struct {
	// Entries is the current number of entries.
	Entries int
	// Size is the total cost of the entries.
	Size int64
	// Capacity is the configured capacity.
	Capacity int64
	// Hits and Misses count Get calls.
	Hits   uint64
	Misses uint64
	// Evictions is the number of entries freed by cleanup or purge.
	Evictions uint64
	// Keeps is the number of times a delete function answered Keep.
	Keeps uint64
}

// Stats returns cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.lru.Len(),
		Size:      c.size,
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Keeps:     c.keeps,
	}
}

// cleanup walks the entries from the least recently used.
// Caller must hold c.mu.
func (c *Cache[V]) cleanup() {
	now := c.opts.now()
	for e := c.lru.Oldest(); e != nil && c.size > c.capacity; {
		prev := e.prev
		switch {
		case e.grace.IsZero():
			e.grace = now
		case now.Sub(e.grace) < c.opts.grace:
		default:
			if !c.release(e) {
				e.grace = time.Time{}
			}
		}
		e = prev
	}
}

// release calls the delete function of e and unlinks it unless the tenant
// keeps it. Caller must hold c.mu.
func (c *Cache[V]) release(e *entry[V]) bool {
	if e.del != nil && e.del(e.value) == Keep {
		c.keeps++
		return false
	}
	c.unlink(e)
	c.evictions++
	return true
}

func (c *Cache[V]) unlink(e *entry[V]) {
	c.lru.Remove(e)
	delete(c.entries, e.key)
	c.size -= e.cost
}
