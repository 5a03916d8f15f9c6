package search

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/emberdb/ember/query"
)

// Cache is a bounded LRU of recent Execute results, keyed by a 64-bit
// hash of the query text plus limit/offset. Readers hit it through Get,
// which takes the cache's read lock and calls the LRU's non-mutating
// Peek so concurrent cache hits don't serialize on LRU recency
// bookkeeping; only a miss followed by Put takes the write lock.
type Cache struct {
	mu  sync.RWMutex
	lru *lru.Cache
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Key computes the cache key for a (query, limit, offset) triple.
func Key(q query.Query, limit, offset int) uint64 {
	text := fmt.Sprintf("%+v|%d|%d", q, limit, offset)
	return xxhash.Sum64String(text)
}

func (c *Cache) Get(key uint64) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	return v.(*Result), true
}

func (c *Cache) Put(key uint64, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, result)
}

// Clear empties the cache. The facade clears it after each of its own
// writes (Add, Delete, Flush, Commit, Compact) and folds the snapshot
// version into every key it uses, so a snapshot published by a
// background merge, which does not clear the cache, never serves a
// result computed against an older snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
