package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size-bounded LRU whose entries expire after a fixed TTL.
// It is safe for concurrent use.
type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// New creates a cache holding at most size entries for ttl each.
func New[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

func (c *Cache[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

// GetOrSet returns the cached value or calls fallback and caches its result.
// Errors are not cached.
func (c *Cache[K, V]) GetOrSet(ctx context.Context, key K, fallback func(context.Context) (V, error)) (V, error) {
	if value, ok := c.lru.Get(key); ok {
		return value, nil
	}
	value, err := fallback(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, value)
	return value, nil
}

// GetMany splits keys into cached values and the keys that missed.
func (c *Cache[K, V]) GetMany(keys []K) (map[K]V, []K) {
	hits := make(map[K]V, len(keys))
	var misses []K
	for _, key := range keys {
		if value, ok := c.lru.Get(key); ok {
			hits[key] = value
			continue
		}
		misses = append(misses, key)
	}
	return hits, misses
}
