// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/memtable"
)

func TestCacheLookupPopulatesFromUnderlying(t *testing.T) {
	m := memtable.New(base.KeyTypeUint32)
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("v")}, false))
	c := NewCache(m, 8)

	v, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "v", string(v.Bytes))

	// Second lookup should hit the cache and still agree.
	v2, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "v", string(v2.Bytes))
}

func TestCacheInsertUpdatesEntryImmediately(t *testing.T) {
	m := memtable.New(base.KeyTypeUint32)
	c := NewCache(m, 8)

	require.NoError(t, c.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	v, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v.Bytes))

	require.NoError(t, c.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("b")}, false))
	v, err = c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "b", string(v.Bytes))
}

func TestCacheRemoveStoresTombstoneInCache(t *testing.T) {
	m := memtable.New(base.KeyTypeUint32)
	c := NewCache(m, 8)
	require.NoError(t, c.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	require.NoError(t, c.Remove(base.NewUint32Key(1)))

	v, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.True(t, v.IsTombstone())

	_, ok, err := c.Present(base.NewUint32Key(1))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCacheEvictsOldestEntryFirstNotLRU(t *testing.T) {
	m := memtable.New(base.KeyTypeUint32)
	for _, k := range []uint32{1, 2, 3} {
		require.NoError(t, m.Insert(base.NewUint32Key(k), base.Value{Exists: true, Bytes: []byte{byte(k)}}, false))
	}
	c := NewCache(m, 2)

	// Warm the cache in insertion order 1, 2.
	_, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	_, err = c.Lookup(base.NewUint32Key(2))
	require.NoError(t, err)

	// Hitting key 1 again must NOT move it to the back of the FIFO queue:
	// the cache evicts by insertion order, not recency.
	_, err = c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)

	// A third distinct key should evict key 1 (the oldest insertion), not
	// key 2, even though key 1 was the most recently accessed.
	_, err = c.Lookup(base.NewUint32Key(3))
	require.NoError(t, err)

	require.NotContains(t, c.order, cacheMapKey(base.NewUint32Key(1)))
	require.Contains(t, c.order, cacheMapKey(base.NewUint32Key(2)))
	require.Contains(t, c.order, cacheMapKey(base.NewUint32Key(3)))
}

func TestCacheBypassSkipsCacheReadsAndWrites(t *testing.T) {
	m := memtable.New(base.KeyTypeUint32)
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	c := NewCache(m, 8)
	_, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)

	c.SetBypass(true)
	// Mutate underlying directly; a bypassed cache must observe it instead
	// of serving its stale cached copy.
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("b")}, false))

	v, err := c.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "b", string(v.Bytes))
}

func TestCacheIteratorBypassesCacheEntirely(t *testing.T) {
	m := memtable.New(base.KeyTypeUint32)
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	c := NewCache(m, 8)

	it, err := c.Iterator()
	require.NoError(t, err)
	require.True(t, it.First())
	require.Equal(t, uint32(1), it.Key().Uint32())
}
