// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
)

func TestInsertAndLookup(t *testing.T) {
	m := New(base.KeyTypeUint32)
	require.NoError(t, m.Insert(base.NewUint32Key(5), base.Value{Exists: true, Bytes: []byte("five")}, false))

	v, err := m.Lookup(base.NewUint32Key(5))
	require.NoError(t, err)
	require.Equal(t, "five", string(v.Bytes))

	missing, err := m.Lookup(base.NewUint32Key(6))
	require.NoError(t, err)
	require.False(t, missing.Exists)
}

func TestInsertOutOfOrderKeepsSortedOrder(t *testing.T) {
	m := New(base.KeyTypeUint32)
	for _, k := range []uint32{5, 1, 3, 2, 4} {
		require.NoError(t, m.Insert(base.NewUint32Key(k), base.Value{Exists: true, Bytes: []byte{byte(k)}}, false))
	}
	it, err := m.Iterator()
	require.NoError(t, err)
	var got []uint32
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key().Uint32())
	}
	require.Equal(t, []uint32{1, 2, 3, 4, 5}, got)
}

func TestInsertOverwritesExistingKey(t *testing.T) {
	m := New(base.KeyTypeUint32)
	k := base.NewUint32Key(1)
	require.NoError(t, m.Insert(k, base.Value{Exists: true, Bytes: []byte("old")}, false))
	require.NoError(t, m.Insert(k, base.Value{Exists: true, Bytes: []byte("new")}, false))
	require.Equal(t, 1, m.Size())

	v, err := m.Lookup(k)
	require.NoError(t, err)
	require.Equal(t, "new", string(v.Bytes))
}

func TestAppendHintFastPathRequiresMonotonicKey(t *testing.T) {
	m := New(base.KeyTypeUint32)
	require.NoError(t, m.Insert(base.NewUint32Key(5), base.Value{Exists: true, Bytes: []byte("a")}, true))
	// A smaller key with appendHint=true falls back to the ordered-insert
	// path instead of corrupting sort order.
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("b")}, true))

	it, err := m.Iterator()
	require.NoError(t, err)
	var got []uint32
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key().Uint32())
	}
	require.Equal(t, []uint32{1, 5}, got)
}

func TestRemoveStoresTombstone(t *testing.T) {
	m := New(base.KeyTypeUint32)
	k := base.NewUint32Key(1)
	require.NoError(t, m.Insert(k, base.Value{Exists: true, Bytes: []byte("x")}, false))
	require.NoError(t, m.Remove(k))

	v, err := m.Lookup(k)
	require.NoError(t, err)
	require.True(t, v.IsTombstone())
}

func TestInsertWrongKeyTypeIsInvalidArgument(t *testing.T) {
	m := New(base.KeyTypeUint32)
	err := m.Insert(base.NewStringKey("x"), base.Tombstone(), false)
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindInvalidArgument))
}

func TestSeekGE(t *testing.T) {
	m := New(base.KeyTypeUint32)
	for _, k := range []uint32{10, 20, 30} {
		require.NoError(t, m.Insert(base.NewUint32Key(k), base.Value{Exists: true, Bytes: []byte{byte(k)}}, false))
	}
	it, err := m.Iterator()
	require.NoError(t, err)

	valid, exact := it.SeekGE(base.NewUint32Key(20))
	require.True(t, valid)
	require.True(t, exact)
	require.Equal(t, uint32(20), it.Key().Uint32())

	valid, exact = it.SeekGE(base.NewUint32Key(25))
	require.True(t, valid)
	require.False(t, exact)
	require.Equal(t, uint32(30), it.Key().Uint32())

	valid, _ = it.SeekGE(base.NewUint32Key(31))
	require.False(t, valid)
}

func TestIteratorSnapshotsAtCreationTime(t *testing.T) {
	m := New(base.KeyTypeUint32)
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	it, err := m.Iterator()
	require.NoError(t, err)
	require.NoError(t, m.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))

	var got []uint32
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key().Uint32())
	}
	require.Equal(t, []uint32{1}, got)
}
