// Package cache provides a typed TTL cache backed by patrickmn/go-cache.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// InMemory is a thread-safe, typed TTL cache.
type InMemory[T any] struct {
	store *gocache.Cache
}

// New creates a cache whose entries expire after ttl. Expired entries are
// purged every ttl*2.
func New[T any](ttl time.Duration) *InMemory[T] {
	return &InMemory[T]{store: gocache.New(ttl, 2*ttl)}
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.store.SetDefault(key, value)
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.store.Delete(key)
}

// Len reports the number of entries, including expired ones not yet purged.
func (c *InMemory[T]) Len() int {
	return c.store.ItemCount()
}
