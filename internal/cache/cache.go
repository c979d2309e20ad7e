package cache

import "sync"

// Cache is a thread-safe LRU cache with a soft limit. When an insertion
// pushes the cache past the limit, the least recently used entries are
// dropped until it fits again.
//
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*cacheEntry[K, V]
	order     List[K]
	softLimit int
	hits      uint64
	misses    uint64
}

type cacheEntry[K comparable, V any] struct {
	value V
	node  *Node[K]
}

// New creates a cache with the given soft limit. A softLimit of 0 means
// unlimited.
func New[K comparable, V any](softLimit int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*cacheEntry[K, V]),
		softLimit: softLimit,
	}
}

// Get retrieves a value and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(e.node)
	return e.value, true
}

// Set stores a value, replacing any previous one.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// GetOrLoad returns the cached value or calls load to produce it. load runs
// under the cache lock, so concurrent callers never load the same key
// twice. Errors from load are returned and nothing is cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(e.node)
		return e.value, nil
	}
	c.misses++

	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.setLocked(key, v)
	return v, nil
}

// Delete removes an entry. Returns true if it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(e.node)
	delete(c.entries, key)
	return true
}

// Clear removes all entries. Statistics are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*cacheEntry[K, V])
	c.order.Clear()
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Len:      len(c.entries),
		Capacity: c.softLimit,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

// Caller must hold c.mu.
func (c *Cache[K, V]) setLocked(key K, value V) {
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.order.MoveToFront(e.node)
		return
	}
	c.entries[key] = &cacheEntry[K, V]{value: value, node: c.order.PushFront(key)}

	for c.softLimit > 0 && len(c.entries) > c.softLimit {
		oldest := c.order.Oldest()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Key)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the soft limit, 0 when unlimited.
	Capacity int
	// Hits is the number of lookups that found an entry.
	Hits uint64
	// Misses is the number of lookups that did not.
	Misses uint64
}
