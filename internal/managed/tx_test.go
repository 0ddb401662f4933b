// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
)

func TestTxWritesAreInvisibleOutsideTheTransaction(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	id, err := m.CreateTx()
	require.NoError(t, err)

	require.NoError(t, m.TxInsert(id, base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	// Not visible via the committed read path.
	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, v.Exists)

	// Visible via the transaction's own read path.
	tv, err := m.TxLookup(id, base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(tv.Bytes))
}

func TestCommitTxFoldsWritesIntoCommittedView(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	id, err := m.CreateTx()
	require.NoError(t, err)
	require.NoError(t, m.TxInsert(id, base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	require.NoError(t, m.CommitTx(id))

	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v.Bytes))

	_, err = m.TxLookup(id, base.NewUint32Key(1))
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindNotFound))
}

func TestAbortTxDropsBufferedWrites(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	id, err := m.CreateTx()
	require.NoError(t, err)
	require.NoError(t, m.TxInsert(id, base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	require.NoError(t, m.AbortTx(id))

	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, v.Exists)

	_, err = m.TxLookup(id, base.NewUint32Key(1))
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindNotFound))
}

func TestTxRemoveShadowsCommittedValueWithinTransactionOnly(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	id, err := m.CreateTx()
	require.NoError(t, err)
	require.NoError(t, m.TxRemove(id, base.NewUint32Key(1)))

	tv, err := m.TxLookup(id, base.NewUint32Key(1))
	require.NoError(t, err)
	require.False(t, tv.Exists)

	v, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.Equal(t, "a", string(v.Bytes))
}

func TestCheckTxAgreesWhenComparatorUnchanged(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	id, err := m.CreateTx()
	require.NoError(t, err)

	ok, err := m.CheckTx(id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCommitTxFailsWithConflictAfterComparatorChanges(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	id, err := m.CreateTx()
	require.NoError(t, err)
	require.NoError(t, m.TxInsert(id, base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))

	// Changing the blob comparator after the tx began invalidates it, per
	// the single schema-evolution knob this store supports.
	require.NoError(t, m.SetBlobCmp(base.DefaultBlobComparator{}))

	err = m.CommitTx(id)
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindConflict))
}

func TestTxLookupOnUnknownIDIsNotFound(t *testing.T) {
	m := newTestManaged(t, base.Params{})
	_, err := m.TxLookup([16]byte{}, base.NewUint32Key(1))
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindNotFound))
}
