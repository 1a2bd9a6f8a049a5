// Package uricache implements the per-evaluator bounded LRU described in
// §4.6: a bounded cache from string to parsed Uri, plus a one-slot "hot
// key" short-circuit that skips hashing entirely on repeat lookups of the
// same key (the common case when a ruleset repeatedly parses the same
// Region-derived host across conditions within one evaluation).
package uricache

import (
	"container/list"

	"rulesengine/rules/value"
)

const defaultCapacity = 32

type entry struct {
	key string
	uri *value.Uri
}

// Cache is not safe for concurrent use; it is meant to be owned by exactly
// one Evaluator.
type Cache struct {
	capacity int
	ll       *list.List
	index    map[string]*list.Element

	hotKey string
	hotURI *value.Uri
	hotSet bool
}

// New creates a Cache with the given capacity. A capacity <= 0 uses the
// default of 32.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Get parses key into a Uri, consulting the hot slot and the LRU before
// falling back to a fresh parse. It never errors: a malformed key returns
// (nil, false) and is not cached in the hot slot (only successful parses
// become the new hot key).
func (c *Cache) Get(key string) (*value.Uri, bool) {
	if c.hotSet && c.hotKey == key {
		return c.hotURI, true
	}

	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		u := el.Value.(*entry).uri
		c.setHot(key, u)
		return u, true
	}

	u, ok := value.ParseURI(key)
	if !ok {
		return nil, false
	}

	c.insert(key, u)
	c.setHot(key, u)
	return u, true
}

func (c *Cache) setHot(key string, u *value.Uri) {
	c.hotKey = key
	c.hotURI = u
	c.hotSet = true
}

func (c *Cache) insert(key string, u *value.Uri) {
	el := c.ll.PushFront(&entry{key: key, uri: u})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*entry).key)
		}
	}
}

// Len reports the number of entries currently held in the LRU (excluding
// the hot slot, which may or may not also be indexed there).
func (c *Cache) Len() int { return c.ll.Len() }
