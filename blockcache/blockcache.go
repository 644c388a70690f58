// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package blockcache implements a best-effort, fixed-capacity cache of
// decoded logical blocks, keyed by block index. Containers consult the
// cache before reading a block from the substrate and populate it after a
// transformer pipeline decode; there is no correctness dependency on the
// cache, only a performance one.
package blockcache

import "sync"

// Cache holds up to capacity full-size decoded blocks, keyed by logical
// block index. It never resizes once constructed. Eviction is unordered:
// once full, Store picks an arbitrary existing entry to evict. Callers that
// need predictable eviction should size the cache generously or not rely on
// which blocks survive.
type Cache struct {
	mu       sync.Mutex
	capacity int
	blocks   map[int64][]byte
}

// New returns a Cache that holds at most capacity blocks. A capacity of 0
// disables caching: TryRead always misses and Store is a no-op.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		blocks:   make(map[int64][]byte, capacity),
	}
}

// TryRead copies the cached contents of block index into out and reports
// true, or reports false if index is not cached. out must be at least as
// large as the cached block.
func (c *Cache) TryRead(index int64, out []byte) (int, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[index]
	if !ok {
		return 0, false
	}
	n := copy(out, b)
	return n, true
}

// Store caches a copy of block for logical block index, evicting an
// arbitrary entry first if the cache is at capacity.
func (c *Cache) Store(index int64, block []byte) {
	if c == nil || c.capacity == 0 {
		return
	}
	cp := make([]byte, len(block))
	copy(cp, block)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.blocks[index]; !exists && len(c.blocks) >= c.capacity {
		for k := range c.blocks {
			delete(c.blocks, k)
			break
		}
	}
	c.blocks[index] = cp
}

// Invalidate removes index from the cache, if present. Callers invoke this
// after overwriting a block so a stale decode is never served.
func (c *Cache) Invalidate(index int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.blocks, index)
	c.mu.Unlock()
}

// Dispose clears the cache. It is safe to call more than once.
func (c *Cache) Dispose() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.blocks = make(map[int64][]byte, c.capacity)
	c.mu.Unlock()
}
