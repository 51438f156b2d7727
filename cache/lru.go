// Package cache memoizes retrieval results per (role, question) pair.
package cache

import (
	"container/list"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/finsolve/rbac-chat/schema"
)

// Retrieval is a bounded LRU cache of chunk lists keyed by role and
// normalized question. All mutations serialize through one mutex so the
// recency list can never be corrupted by concurrent requests.
type Retrieval struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	order    *list.List
}

type entry struct {
	key     string
	value   []schema.SearchResult
	expires time.Time
	element *list.Element
}

// NewRetrieval creates a cache with the given capacity and default TTL.
// A non-positive capacity falls back to 128 entries; a non-positive TTL
// means entries never expire.
func NewRetrieval(capacity int, ttl time.Duration) *Retrieval {
	if capacity <= 0 {
		capacity = 128
	}
	return &Retrieval{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

// Key computes the cache key for a (role, question) pair.
func Key(role, question string) string {
	base := fmt.Sprintf("%s|%s", strings.ToLower(strings.TrimSpace(role)), strings.ToLower(strings.TrimSpace(question)))
	hash := sha1.Sum([]byte(base))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached chunk list for the pair, marking it most recently
// used. The returned slice is a copy.
func (c *Retrieval) Get(role, question string) ([]schema.SearchResult, bool) {
	key := Key(role, question)

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !ent.expires.IsZero() && !time.Now().Before(ent.expires) {
		c.removeEntry(ent)
		return nil, false
	}
	c.order.MoveToFront(ent.element)
	return schema.CloneResults(ent.value), true
}

// Set stores the chunk list for the pair, evicting the least recently used
// entry when at capacity. The stored value is a copy of the input.
func (c *Retrieval) Set(role, question string, results []schema.SearchResult) {
	key := Key(role, question)
	value := schema.CloneResults(results)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = c.computeExpiry()
		c.order.MoveToFront(ent.element)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(key)
	c.items[key] = &entry{
		key:     key,
		value:   value,
		expires: c.computeExpiry(),
		element: elem,
	}
}

// Len reports the number of cached entries.
func (c *Retrieval) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge drops all entries.
func (c *Retrieval) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.order.Init()
}

func (c *Retrieval) computeExpiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

func (c *Retrieval) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	if ent, ok := c.items[key]; ok {
		c.removeEntry(ent)
	}
}

func (c *Retrieval) removeEntry(ent *entry) {
	if ent.element != nil {
		c.order.Remove(ent.element)
	}
	delete(c.items, ent.key)
}
