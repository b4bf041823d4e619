// Package cache implements the Cache Service: an LRU+TTL cache with
// content-addressed keys and a pub/sub invalidation bus, used to avoid
// re-running analysis for files whose content and enclosing
// smart-folder set haven't changed.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
)

// Key builds a content-addressed cache key for path, scoped by the
// exact byte length of input (to avoid truncation collisions) and a
// SHA-256 digest of input. The path is embedded directly so that
// invalidation can match by substring, per the cache's path-based
// invalidation contract.
func Key(path string, input []byte) string {
	sum := sha256.Sum256(input)
	return fmt.Sprintf("%s|%d|%s", path, len(input), hex.EncodeToString(sum[:]))
}

type entry struct {
	key      string
	value    any
	storedAt time.Time
}

// Cache is an LRU cache with a fixed capacity and a uniform TTL,
// using last-access ordering (an access bumps an entry to the front).
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clk      clock.Clock
	order    *list.List
	items    map[string]*list.Element
}

// New creates a Cache holding up to capacity entries, each expiring
// ttl after it was last stored or refreshed.
func New(capacity int, ttl time.Duration, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		clk:      clk,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached value for key if present and unexpired. An
// access bumps the entry to the front of the LRU order.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.clk.Now().Sub(e.storedAt) > c.ttl {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.storedAt = c.clk.Now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value, storedAt: c.clk.Now()})
	c.items[key] = el

	if c.capacity > 0 {
		for c.order.Len() > c.capacity {
			back := c.order.Back()
			if back == nil {
				break
			}
			c.removeElement(back)
		}
	}
}

// removeElement must be called with c.mu held.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Len reports the number of entries currently held, including expired
// entries that have not yet been purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// InvalidateAll clears every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// InvalidatePath removes every entry whose key contains path as a
// substring, matching the cache's content-addressed key format where
// the affected path is embedded verbatim.
func (c *Cache) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePathLocked(path)
}

func (c *Cache) invalidatePathLocked(path string) {
	var toRemove []*list.Element
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if strings.Contains(e.key, path) {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.removeElement(el)
	}
}

// InvalidateBatch removes entries for every path in paths.
func (c *Cache) InvalidateBatch(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		c.invalidatePathLocked(p)
	}
}
