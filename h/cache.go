package h

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a small TTL cache backed by ristretto. Writes are flushed
// before Set returns so a following Get observes them.
type Cache[V any] struct {
	internal *ristretto.Cache[string, V]
	ttl      time.Duration
}

func NewCache[V any](ttl time.Duration) (*Cache[V], error) {
	internal, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		// cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache[V]{internal: internal, ttl: ttl}, nil
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.internal.Get(key)
}

func (c *Cache[V]) Set(key string, value V) {
	c.internal.SetWithTTL(key, value, 1, c.ttl)
	c.internal.Wait()
}

func (c *Cache[V]) Del(key string) {
	c.internal.Del(key)
}

// GetOrSet returns the cached value or loads, stores and returns a fresh one.
// Load errors are returned and nothing is cached.
func (c *Cache[V]) GetOrSet(key string, load func() (V, error)) (V, error) {
	if val, ok := c.internal.Get(key); ok {
		return val, nil
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	c.Set(key, value)
	return value, nil
}

func (c *Cache[V]) Close() {
	c.internal.Close()
}
