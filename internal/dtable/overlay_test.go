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

func memLevel(t *testing.T, entries map[uint32]base.Value) DTable {
	t.Helper()
	m := memtable.New(base.KeyTypeUint32)
	for k, v := range entries {
		require.NoError(t, m.Insert(base.NewUint32Key(k), v, false))
	}
	return m
}

func TestOverlayLookupNewestLevelWins(t *testing.T) {
	old := memLevel(t, map[uint32]base.Value{1: {Exists: true, Bytes: []byte("old")}})
	newer := memLevel(t, map[uint32]base.Value{1: {Exists: true, Bytes: []byte("new")}})
	o := NewOverlay(base.KeyTypeUint32, []DTable{old, newer})

	v, err := o.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "new", string(v.Bytes))
}

func TestOverlayTombstoneInNewerLevelHidesOlder(t *testing.T) {
	old := memLevel(t, map[uint32]base.Value{1: {Exists: true, Bytes: []byte("old")}})
	newer := memLevel(t, map[uint32]base.Value{1: base.Tombstone()})
	o := NewOverlay(base.KeyTypeUint32, []DTable{old, newer})

	v, err := o.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, v.Exists)

	_, ok, err := o.Present(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOverlayLookupFallsThroughAbsentLevels(t *testing.T) {
	old := memLevel(t, map[uint32]base.Value{1: {Exists: true, Bytes: []byte("old")}})
	newer := memLevel(t, map[uint32]base.Value{2: {Exists: true, Bytes: []byte("new")}})
	o := NewOverlay(base.KeyTypeUint32, []DTable{old, newer})

	v, err := o.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "old", string(v.Bytes))
}

func TestOverlayIteratorMergesAndDedupes(t *testing.T) {
	old := memLevel(t, map[uint32]base.Value{
		1: {Exists: true, Bytes: []byte("old1")},
		2: {Exists: true, Bytes: []byte("old2")},
	})
	newer := memLevel(t, map[uint32]base.Value{
		2: {Exists: true, Bytes: []byte("new2")},
		3: {Exists: true, Bytes: []byte("new3")},
	})
	o := NewOverlay(base.KeyTypeUint32, []DTable{old, newer})

	it, err := o.Iterator()
	require.NoError(t, err)
	defer it.Close()

	type kv struct {
		k uint32
		v string
	}
	var got []kv
	for ok := it.First(); ok; ok = it.Next() {
		v, err := it.Value()
		require.NoError(t, err)
		got = append(got, kv{it.Key().Uint32(), string(v.Bytes)})
	}
	require.Equal(t, []kv{{1, "old1"}, {2, "new2"}, {3, "new3"}}, got)
}

func TestOverlayIteratorBackwardMatchesForwardReversed(t *testing.T) {
	old := memLevel(t, map[uint32]base.Value{1: {Exists: true, Bytes: []byte("a")}})
	newer := memLevel(t, map[uint32]base.Value{2: {Exists: true, Bytes: []byte("b")}, 3: {Exists: true, Bytes: []byte("c")}})
	o := NewOverlay(base.KeyTypeUint32, []DTable{old, newer})

	it, err := o.Iterator()
	require.NoError(t, err)
	defer it.Close()

	var got []uint32
	for ok := it.Last(); ok; ok = it.Prev() {
		got = append(got, it.Key().Uint32())
	}
	require.Equal(t, []uint32{3, 2, 1}, got)
}

func TestOverlayNotWritable(t *testing.T) {
	o := NewOverlay(base.KeyTypeUint32, nil)
	require.False(t, o.Writable())
	require.Error(t, o.Insert(base.NewUint32Key(1), base.Tombstone(), false))
	require.Error(t, o.Remove(base.NewUint32Key(1)))
}

func TestOverlaySetBlobCmpPropagatesToEveryLevel(t *testing.T) {
	a := memtable.New(base.KeyTypeBlob)
	b := memtable.New(base.KeyTypeBlob)
	o := NewOverlay(base.KeyTypeBlob, []DTable{a, b})
	require.NoError(t, o.SetBlobCmp(base.DefaultBlobComparator{}))
}
