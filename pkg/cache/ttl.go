package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
	element   *list.Element
}

// TTL is a size-bounded LRU cache whose entries expire after a fixed time-to-live.
type TTL[K comparable, V any] struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[K]*entry[K, V]
	lruList *list.List
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	maxSize int
	now     func() time.Time
}

// WithMaxSize bounds the number of entries (default 1000).
func WithMaxSize(n int) Option {
	return func(o *options) { o.maxSize = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewTTL creates a cache with the given time-to-live. A ttl <= 0 disables caching.
func NewTTL[K comparable, V any](ttl time.Duration, opts ...Option) *TTL[K, V] {
	o := &options{maxSize: 1000, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxSize <= 0 {
		o.maxSize = 1000
	}
	return &TTL[K, V]{
		ttl:     ttl,
		maxSize: o.maxSize,
		now:     o.now,
		entries: make(map[K]*entry[K, V]),
		lruList: list.New(),
	}
}

// TTL returns the configured time-to-live.
func (c *TTL[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached value if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(e)
		return zero, false
	}
	c.lruList.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *TTL[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.now().Add(c.ttl)
		c.lruList.MoveToFront(e.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*entry[K, V]))
		}
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	e.element = c.lruList.PushFront(e)
	c.entries[key] = e
}

// GetOrLoad returns the cached value or calls load and caches its result on success.
func (c *TTL[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete removes an entry.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// Clear removes all entries.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]*entry[K, V])
	c.lruList.Init()
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until they are touched.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

func (c *TTL[K, V]) removeLocked(e *entry[K, V]) {
	c.lruList.Remove(e.element)
	delete(c.entries, e.key)
}
