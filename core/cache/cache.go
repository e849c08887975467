// Package cache provides LRU caching for rendered scroll documents.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache.
	Get(key K) (V, bool)

	// Put stores a value in the cache.
	Put(key K, value V)

	// Remove removes a value from the cache.
	Remove(key K)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Size       int
	MaxSize    int
	TotalBytes int64
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an entry is evicted.
	OnEvict func(key, value interface{})
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize: 100,
		TTL:     0,
		OnEvict: nil,
	}
}

// entry represents a cache entry.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.RWMutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}

	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Check if expired
	e := ent.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Now().After(e.expiresAt) {
		c.removeElement(ent)
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Move to front (most recently used)
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return e.value, true
}

// Put stores a value in the cache.
func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if entry already exists
	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		e.value = value
		if c.config.TTL > 0 {
			e.expiresAt = time.Now().Add(c.config.TTL)
		}
		return
	}

	// Add new entry
	e := &entry[K, V]{
		key:   key,
		value: value,
	}
	if c.config.TTL > 0 {
		e.expiresAt = time.Now().Add(c.config.TTL)
	}

	ent := c.evictList.PushFront(e)
	c.entries[key] = ent

	// Evict oldest entry if necessary
	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

// Remove removes a value from the cache.
func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

// Clear removes all entries from the cache.
func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
	c.stats.Size = 0
}

// Len returns the number of entries in the cache.
func (c *lruCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictList.Len()
}

// Stats returns cache statistics.
func (c *lruCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// removeOldest removes the oldest entry from the cache.
func (c *lruCache[K, V]) removeOldest() {
	ent := c.evictList.Back()
	if ent != nil {
		c.removeElement(ent)
		c.stats.Evictions++
	}
}

// removeElement removes an element from the cache.
func (c *lruCache[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// RenderKey builds the cache key for a rendered scroll.
func RenderKey(workID string, scroll int, format string) string {
	return fmt.Sprintf("%s.%d.%s", workID, scroll, format)
}

// RenderCache is a specialized cache for rendered scroll documents. Rendered
// output is immutable for a given (work, scroll, format), so cached entries
// are returned byte-identical. TotalBytes tracks the cached document text.
type RenderCache struct {
	cache Cache[string, string]

	mu    sync.Mutex
	bytes int64
}

// NewRenderCache creates a new rendered-document cache.
func NewRenderCache(config Config) *RenderCache {
	rc := &RenderCache{}

	onEvict := config.OnEvict
	config.OnEvict = func(key, value interface{}) {
		if s, ok := value.(string); ok {
			rc.mu.Lock()
			rc.bytes -= int64(len(s))
			rc.mu.Unlock()
		}
		if onEvict != nil {
			onEvict(key, value)
		}
	}

	rc.cache = NewLRUCache[string, string](config)
	return rc
}

// NewDefaultRenderCache creates a rendered-document cache with default
// configuration. Rendered scrolls can run to hundreds of kilobytes, so the
// default entry count stays moderate.
func NewDefaultRenderCache() *RenderCache {
	config := DefaultConfig()
	config.MaxSize = 64
	return NewRenderCache(config)
}

// Get retrieves a rendered document.
func (c *RenderCache) Get(key string) (string, bool) {
	return c.cache.Get(key)
}

// Put stores a rendered document.
func (c *RenderCache) Put(key string, doc string) {
	if old, ok := c.cache.Get(key); ok {
		c.mu.Lock()
		c.bytes -= int64(len(old))
		c.mu.Unlock()
	}
	c.cache.Put(key, doc)
	c.mu.Lock()
	c.bytes += int64(len(doc))
	c.mu.Unlock()
}

// Remove removes a rendered document.
func (c *RenderCache) Remove(key string) {
	c.cache.Remove(key)
}

// Clear removes all rendered documents.
func (c *RenderCache) Clear() {
	c.cache.Clear()
	c.mu.Lock()
	c.bytes = 0
	c.mu.Unlock()
}

// Len returns the number of cached documents.
func (c *RenderCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics including cached text size.
func (c *RenderCache) Stats() Stats {
	stats := c.cache.Stats()
	c.mu.Lock()
	stats.TotalBytes = c.bytes
	c.mu.Unlock()
	return stats
}
