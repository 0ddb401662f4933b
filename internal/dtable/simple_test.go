// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/memtable"
)

func uint32Entries(t *testing.T, pairs map[uint32]string) Iterator {
	m := memtable.New(base.KeyTypeUint32)
	for k, v := range pairs {
		require.NoError(t, m.Insert(base.NewUint32Key(k), base.Value{Exists: true, Bytes: []byte(v)}, false))
	}
	it, err := m.Iterator()
	require.NoError(t, err)
	return it
}

func TestCreateSimpleAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")

	src := uint32Entries(t, map[uint32]string{1: "one", 2: "two", 3: "three"})
	empty, err := memtable.New(base.KeyTypeUint32).Iterator()
	require.NoError(t, err)

	require.NoError(t, CreateSimple(path, base.KeyTypeUint32, nil, src, empty, false, false, CompressionSnappy))

	dt, err := OpenSimple(path, nil)
	require.NoError(t, err)
	require.Equal(t, base.KeyTypeUint32, dt.KeyType())
	require.False(t, dt.Writable())
	require.Equal(t, 3, dt.Size())

	v, err := dt.Lookup(base.NewUint32Key(2))
	require.NoError(t, err)
	require.Equal(t, "two", string(v.Bytes))

	_, ok, err := dt.Present(base.NewUint32Key(99))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateSimpleMergesSourceOverShadowTombstones(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")

	shadow := memtable.New(base.KeyTypeUint32)
	require.NoError(t, shadow.Insert(base.NewUint32Key(1), base.Tombstone(), false))
	require.NoError(t, shadow.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("stale")}, false))
	shadowIt, err := shadow.Iterator()
	require.NoError(t, err)

	src := uint32Entries(t, map[uint32]string{2: "fresh", 3: "new"})

	require.NoError(t, CreateSimple(path, base.KeyTypeUint32, nil, src, shadowIt, true, false, CompressionSnappy))

	dt, err := OpenSimple(path, nil)
	require.NoError(t, err)
	// Key 1: tombstone only in shadow, absent from source -> carried forward.
	v1, err := dt.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.True(t, v1.IsTombstone())
	// Key 2: present in both -> source wins.
	v2, err := dt.Lookup(base.NewUint32Key(2))
	require.NoError(t, err)
	require.Equal(t, "fresh", string(v2.Bytes))
	// Key 3: source-only.
	v3, err := dt.Lookup(base.NewUint32Key(3))
	require.NoError(t, err)
	require.Equal(t, "new", string(v3.Bytes))
	require.Equal(t, 3, dt.Size())
}

func TestCreateSimpleDropTombstonesOmitsSourceTombstones(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")

	src := memtable.New(base.KeyTypeUint32)
	require.NoError(t, src.Insert(base.NewUint32Key(1), base.Tombstone(), false))
	require.NoError(t, src.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("v")}, false))
	srcIt, err := src.Iterator()
	require.NoError(t, err)
	empty, err := memtable.New(base.KeyTypeUint32).Iterator()
	require.NoError(t, err)

	require.NoError(t, CreateSimple(path, base.KeyTypeUint32, nil, srcIt, empty, false, true, CompressionSnappy))

	dt, err := OpenSimple(path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, dt.Size())
	_, ok, err := dt.Present(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSimpleDTableIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")
	empty, err := memtable.New(base.KeyTypeUint32).Iterator()
	require.NoError(t, err)
	require.NoError(t, CreateSimple(path, base.KeyTypeUint32, nil, empty, empty, false, false, CompressionSnappy))

	dt, err := OpenSimple(path, nil)
	require.NoError(t, err)

	err = dt.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("x")}, false)
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindUnsupported))

	err = dt.Remove(base.NewUint32Key(1))
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindUnsupported))
}

func TestSimpleDTableIteratorOrderAndSeek(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")
	src := uint32Entries(t, map[uint32]string{5: "e", 1: "a", 3: "c"})
	empty, err := memtable.New(base.KeyTypeUint32).Iterator()
	require.NoError(t, err)
	require.NoError(t, CreateSimple(path, base.KeyTypeUint32, nil, src, empty, false, false, CompressionSnappy))

	dt, err := OpenSimple(path, nil)
	require.NoError(t, err)
	it, err := dt.Iterator()
	require.NoError(t, err)

	var got []uint32
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key().Uint32())
	}
	require.Equal(t, []uint32{1, 3, 5}, got)

	valid, exact := it.SeekGE(base.NewUint32Key(2))
	require.True(t, valid)
	require.False(t, exact)
	require.Equal(t, uint32(3), it.Key().Uint32())
}

func TestOpenSimpleRejectsComparatorMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")

	m := memtable.New(base.KeyTypeBlob)
	require.NoError(t, m.Insert(base.NewBlobKey([]byte("a")), base.Value{Exists: true, Bytes: []byte("v")}, false))
	it, err := m.Iterator()
	require.NoError(t, err)
	empty, err := memtable.New(base.KeyTypeBlob).Iterator()
	require.NoError(t, err)

	named := namedComparator{name: "custom"}
	require.NoError(t, CreateSimple(path, base.KeyTypeBlob, named, it, empty, false, false, CompressionNone))

	_, err = OpenSimple(path, namedComparator{name: "other"})
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindInvalidArgument))
}

type namedComparator struct{ name string }

func (c namedComparator) Name() string                 { return c.name }
func (c namedComparator) Compare(a, b []byte) int       { return base.DefaultBlobComparator{}.Compare(a, b) }
