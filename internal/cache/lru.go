// Package cache provides a small in-process LRU for hot analysis
// results. It sits in front of the durable cache: entries here are
// ephemeral and vanish on restart, so it is purely a latency shortcut.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/draftwise/draftwise-api/internal/models"
)

// DefaultMaxEntries bounds the LRU when no size is given.
const DefaultMaxEntries = 500

// LRU is a bounded, TTL-aware, thread-safe cache keyed by
// (userHash, fingerprint). When full it evicts the oldest fifth in one
// sweep, so admission after eviction stays cheap for a while.
type LRU struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	items      map[string]*list.Element
}

type lruItem struct {
	key   string
	entry *models.CacheEntry
}

// NewLRU creates an LRU holding at most maxEntries entries.
func NewLRU(maxEntries int) *LRU {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &LRU{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func key(userHash, fingerprint string) string {
	return userHash + "\x00" + fingerprint
}

// Get returns the cached entry, or nil on miss. Expired entries are
// dropped on read.
func (c *LRU) Get(userHash, fingerprint string, now time.Time) *models.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key(userHash, fingerprint)]
	if !ok {
		return nil
	}

	item := el.Value.(*lruItem)
	if item.entry.Expired(now) {
		c.remove(el)
		return nil
	}

	c.order.MoveToFront(el)
	return item.entry
}

// Put stores an entry, evicting the oldest 20% if the cache is full.
func (c *LRU) Put(entry *models.CacheEntry) {
	if entry == nil || entry.Result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(entry.UserHash, entry.Fingerprint)
	if el, ok := c.items[k]; ok {
		el.Value.(*lruItem).entry = entry
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxEntries {
		c.evictOldest()
	}

	c.items[k] = c.order.PushFront(&lruItem{key: k, entry: entry})
}

// evictOldest removes the least recently used 20% of entries, at least
// one. Caller holds the lock.
func (c *LRU) evictOldest() {
	n := c.order.Len() / 5
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		el := c.order.Back()
		if el == nil {
			return
		}
		c.remove(el)
	}
}

// remove deletes an element. Caller holds the lock.
func (c *LRU) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*lruItem).key)
}

// Len returns the current number of entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops all entries.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}
