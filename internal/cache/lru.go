package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds values under string keys with an expiry per entry.
//
// Two policies share it. Set evicts the least recently used entry when the
// cache is full, which suits recomputable data such as report snapshots.
// TrySet never evicts a live entry and refuses instead, which suits data
// that must not be forgotten early, such as revoked token ids.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration // used by Set
	items   map[string]*list.Element
	order   *list.List // front is most recently used
	now     func() time.Time
}

var _ Cache[int] = (*LRUCache[int])(nil)

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

func (e *entry[T]) expired(now time.Time) bool { return now.After(e.expiresAt) }

// NewLRUCache returns a cache of at most maxSize entries whose Set entries
// live for ttl.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if e.expired(c.now()) {
		c.remove(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores value for the cache's default TTL, evicting the least recently
// used entry when full.
func (c *LRUCache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL is Set with an explicit lifetime.
func (c *LRUCache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.replace(key, value, ttl) {
		return
	}
	c.insert(key, value, ttl)
	if c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

// TrySet stores value for ttl without evicting live entries. When the cache
// is full, expired entries are dropped first; if none were, nothing is
// stored and TrySet reports false. Updating a present key always succeeds.
func (c *LRUCache[T]) TrySet(key string, value T, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.replace(key, value, ttl) {
		return true
	}
	if c.order.Len() >= c.maxSize && c.purgeExpired() == 0 {
		return false
	}
	c.insert(key, value, ttl)
	return true
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Clear drops every entry.
func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// CleanExpired implements Cleaner.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpired()
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// replace updates key in place when present. Callers hold mu.
func (c *LRUCache[T]) replace(key string, value T, ttl time.Duration) bool {
	elem, ok := c.items[key]
	if !ok {
		return false
	}
	elem.Value = &entry[T]{key: key, value: value, expiresAt: c.now().Add(ttl)}
	c.order.MoveToFront(elem)
	return true
}

func (c *LRUCache[T]) insert(key string, value T, ttl time.Duration) {
	c.items[key] = c.order.PushFront(&entry[T]{key: key, value: value, expiresAt: c.now().Add(ttl)})
}

func (c *LRUCache[T]) purgeExpired() int {
	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry[T]).expired(now) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *LRUCache[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}
