// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/journal"
)

func newTestManaged(t *testing.T, params base.Params) *Managed {
	t.Helper()
	dir := t.TempDir()
	j, err := journal.Open(dir, "system.journal")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	ids, err := journal.OpenIDSource(dir)
	require.NoError(t, err)

	m, err := Open(filepath.Join(dir, "table"), base.KeyTypeUint32, params, j, ids, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestInsertLookupRemoveRoundTrip(t *testing.T) {
	m := newTestManaged(t, base.Params{})

	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v.Bytes))

	require.NoError(t, m.Remove(base.NewUint32Key(1)))
	v, err = m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, v.Exists)
}

func TestDigestMovesMemtableToOnDiskRun(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	require.NoError(t, m.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))

	require.NoError(t, m.Digest(false))
	require.Equal(t, 1, m.DiskDtables())

	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v.Bytes))
}

func TestDigestOfEmptyMemtableIsANoop(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Digest(false))
	require.Equal(t, 0, m.DiskDtables())
}

func TestCombineMergesRunsAndDropsTombstonesWhenNoShadowRemains(t *testing.T) {
	m := newTestManaged(t, base.Params{})

	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	require.NoError(t, m.Digest(false))

	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Tombstone(), false))
	require.NoError(t, m.Digest(false))
	require.Equal(t, 2, m.DiskDtables())

	require.NoError(t, m.Combine(0, m.DiskDtables(), false))
	require.Equal(t, 1, m.DiskDtables())

	_, ok, err := m.Present(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCombinePreservesTombstoneMaskingAnOlderShadowRun(t *testing.T) {
	m := newTestManaged(t, base.Params{})

	// run0: K=1 -> "old"
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("old")}, false))
	require.NoError(t, m.Digest(false))

	// run1: K=1 -> tombstone (a later Remove)
	require.NoError(t, m.Remove(base.NewUint32Key(1)))
	require.NoError(t, m.Digest(false))

	// run2: an unrelated key
	require.NoError(t, m.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))
	require.NoError(t, m.Digest(false))
	require.Equal(t, 3, m.DiskDtables())

	_, ok, err := m.Present(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, ok, "tombstone in run1 must mask run0's value before combine")

	// Combine only [run1, run2) with run0 left as the shadow: first > 0, so
	// the combined run must still carry K=1's tombstone forward rather than
	// silently dropping it and resurrecting run0's stale value.
	require.NoError(t, m.Combine(1, 3, false))
	require.Equal(t, 2, m.DiskDtables())

	_, ok, err = m.Present(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, ok, "combine with a shadow must not resurrect a tombstoned key")

	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, v.Exists)
}

func TestCombineIncludingMemtableFoldsLiveWrites(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	require.NoError(t, m.Digest(false))
	require.NoError(t, m.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))

	// last = DiskDtables()+1 folds the live memtable into the merge too.
	require.NoError(t, m.Combine(0, m.DiskDtables()+1, false))
	require.Equal(t, 1, m.DiskDtables())

	v1, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v1.Bytes))
	v2, err := m.Lookup(base.NewUint32Key(2))
	require.NoError(t, err)
	require.Equal(t, "b", string(v2.Bytes))

	// A fresh write still lands after combine folded the old memtable.
	require.NoError(t, m.Insert(base.NewUint32Key(3), base.Value{Exists: true, Bytes: []byte("c")}, false))
	v3, err := m.Lookup(base.NewUint32Key(3))
	require.NoError(t, err)
	require.Equal(t, "c", string(v3.Bytes))
}

func TestCombineRejectsOutOfRange(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	err := m.Combine(0, m.DiskDtables()+2, false)
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindInvalidArgument))
}

func TestMaintainForceDigestsAndCombines(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	require.NoError(t, m.Digest(false))
	require.NoError(t, m.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))

	require.NoError(t, m.Maintain(true, false))
	require.Equal(t, 1, m.DiskDtables())
}

func TestIteratorOrdersAcrossRunsAndMemtable(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Insert(base.NewUint32Key(3), base.Value{Exists: true, Bytes: []byte("c")}, false))
	require.NoError(t, m.Digest(false))
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	it, err := m.Iterator()
	require.NoError(t, err)
	defer it.Close()

	var got []uint32
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key().Uint32())
	}
	require.Equal(t, []uint32{1, 3}, got)
}

func TestReopenRecoversFromJournalAndMetadata(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.Open(dir, "system.journal")
	require.NoError(t, err)
	ids, err := journal.OpenIDSource(dir)
	require.NoError(t, err)

	tableDir := filepath.Join(dir, "table")
	m, err := Open(tableDir, base.KeyTypeUint32, base.Params{}, j, ids, nil)
	require.NoError(t, err)
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	require.NoError(t, m.Digest(false))
	require.NoError(t, m.Insert(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))
	require.NoError(t, m.Close())
	require.NoError(t, j.Close())

	j2, err := journal.Open(dir, "system.journal")
	require.NoError(t, err)
	t.Cleanup(func() { j2.Close() })
	ids2, err := journal.OpenIDSource(dir)
	require.NoError(t, err)

	m2, err := Open(tableDir, base.KeyTypeUint32, base.Params{}, j2, ids2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m2.Close() })

	require.Equal(t, 1, m2.DiskDtables())
	v1, err := m2.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v1.Bytes))
	v2, err := m2.Lookup(base.NewUint32Key(2))
	require.NoError(t, err)
	require.Equal(t, "b", string(v2.Bytes))
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
