//go:build !nocache

package infra

import (
	"container/list"
	"context"
	"sync"
	"time"

	"chassis/internal/config"
)

// memoryCache is an in-process LRU with per-entry TTL, for deployments that
// enable the cache capability without a redis server.
type memoryCache struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu    sync.Mutex
	order *list.List // front = most recently used
	items map[string]*list.Element
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func newMemoryCache(cfg config.CacheConfig) *memoryCache {
	return &memoryCache{
		ttl:   cfg.TTL(),
		max:   cfg.MaxEntries,
		now:   time.Now,
		order: list.New(),
		items: make(map[string]*list.Element, cfg.MaxEntries),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	entry := ele.Value.(*memoryEntry)
	if c.now().After(entry.expiresAt) {
		c.remove(ele)
		return nil, ErrCacheMiss
	}
	c.order.MoveToFront(ele)
	return entry.value, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if ele, ok := c.items[key]; ok {
		ele.Value = &memoryEntry{key: key, value: value, expiresAt: expiresAt}
		c.order.MoveToFront(ele)
		return nil
	}

	ele := c.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = ele
	if c.order.Len() > c.max {
		c.remove(c.order.Back())
	}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.items[key]; ok {
		c.remove(ele)
	}
	return nil
}

// remove must be called with the lock held.
func (c *memoryCache) remove(ele *list.Element) {
	c.order.Remove(ele)
	delete(c.items, ele.Value.(*memoryEntry).key)
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Ping always succeeds: the store lives in-process.
func (c *memoryCache) Ping(context.Context) error {
	return nil
}

func (c *memoryCache) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	return nil
}
