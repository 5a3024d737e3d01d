package cache

import (
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	cache *cache.Cache
}

func New(defaultExpiration time.Duration) *Cache {
	return &Cache{
		cache: cache.New(defaultExpiration, 2*defaultExpiration),
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.cache.Get(key)
}

func (c *Cache) Set(key string, value interface{}, expiration time.Duration) {
	c.cache.Set(key, value, expiration)
}

func (c *Cache) SetDefault(key string, value interface{}) {
	c.cache.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Delete(key string) {
	c.cache.Delete(key)
}

// Touch re-stores an existing item so its default expiration restarts.
func (c *Cache) Touch(key string) bool {
	v, ok := c.cache.Get(key)
	if ok {
		c.cache.SetDefault(key, v)
	}
	return ok
}

// OnEvicted registers f for items removed by expiry or Delete.
func (c *Cache) OnEvicted(f func(key string, value interface{})) {
	c.cache.OnEvicted(f)
}

// Items returns a copy of the unexpired items.
func (c *Cache) Items() map[string]interface{} {
	items := c.cache.Items()
	out := make(map[string]interface{}, len(items))
	for k, item := range items {
		out[k] = item.Object
	}
	return out
}

func (c *Cache) ItemCount() int {
	return c.cache.ItemCount()
}

// Flush removes every item without calling the eviction callback.
func (c *Cache) Flush() {
	c.cache.Flush()
}
