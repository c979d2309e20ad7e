// Package cache provides the generic recency primitives shared by the
// shader template engine and the transient resource pool.
//
// # Cache[K, V]
//
// A thread-safe LRU cache with a soft limit, used for parsed templates.
//
//	c := cache.New[string, *Template](64)
//	t, err := c.GetOrLoad(name, func() (*Template, error) { return parse(name) })
//
// # List[K]
//
// The intrusive recency list behind Cache. The transient pool uses it
// directly to evict least recently used free resources when it grows past
// its memory budget.
package cache
