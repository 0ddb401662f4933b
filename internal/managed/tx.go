// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"time"

	"github.com/google/uuid"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/journal"
	"github.com/anvildb/anvil/internal/memtable"
)

// Tx is an abortable transaction's per-call write scope, per spec.md §4.4:
// "create_tx() allocates a transaction id and sets up a per-transaction
// memtable overlaid on top of the committed view." Its writes are
// invisible outside the transaction until CommitTx folds them into the
// committed memtable, and vanish entirely on AbortTx. Transaction ids are
// UUIDs (github.com/google/uuid) rather than process-local counters so
// ids stay unique across process restarts of a tool driving concurrent
// transactions, per SPEC_FULL.md's domain stack wiring.
type Tx struct {
	id        uuid.UUID
	listener  journal.ListenerID
	memtable  *memtable.Memtable
	schemaCmp base.Comparator
	created   time.Time
}

// CreateTx allocates a new abortable transaction and returns its id.
func (m *Managed) CreateTx() (uuid.UUID, error) {
	lid, err := m.idSrc.Next()
	if err != nil {
		return uuid.UUID{}, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}, base.Wrap(base.KindIoError, err, "anvildb/managed: allocating transaction id")
	}

	m.viewMu.RLock()
	schemaCmp := m.blobCmp
	keyType := m.keyType
	m.viewMu.RUnlock()

	tx := &Tx{
		id:        id,
		listener:  lid,
		memtable:  memtable.New(keyType),
		schemaCmp: schemaCmp,
		created:   time.Now(),
	}
	if schemaCmp != nil {
		if err := tx.memtable.SetBlobCmp(schemaCmp); err != nil {
			return uuid.UUID{}, err
		}
	}

	m.txMu.Lock()
	m.txs[id] = tx
	m.txMu.Unlock()
	return id, nil
}

func (m *Managed) lookupTx(id uuid.UUID) (*Tx, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, base.Errorf(base.KindNotFound, "anvildb/managed: no such transaction %s", id)
	}
	return tx, nil
}

// TxInsert writes k=v within transaction id's scope: durably journaled
// under the transaction's own listener id, then applied to its private
// memtable, invisible to TxInsert/Lookup calls outside this transaction.
func (m *Managed) TxInsert(id uuid.UUID, k base.Key, v base.Value, appendHint bool) error {
	tx, err := m.lookupTx(id)
	if err != nil {
		return err
	}
	payload := memtable.EncodeMutation(k, v, appendHint)
	if err := m.journal.Append(tx.listener, payload); err != nil {
		return err
	}
	return tx.memtable.Insert(k, v, appendHint)
}

// TxRemove is TxInsert(id, k, tombstone, false).
func (m *Managed) TxRemove(id uuid.UUID, k base.Key) error {
	return m.TxInsert(id, k, base.Tombstone(), false)
}

// TxPresent and TxLookup consult [committed runs…, committed memtable, tx
// memtable], per spec.md §4.4: the transaction's own writes shadow the
// committed view without being visible to any other caller.
func (m *Managed) TxPresent(id uuid.UUID, k base.Key) (base.Metablob, bool, error) {
	tx, err := m.lookupTx(id)
	if err != nil {
		return base.Metablob{}, false, err
	}
	ov, err := m.txOverlay(tx)
	if err != nil {
		return base.Metablob{}, false, err
	}
	return ov.Present(k)
}

// TxLookup is the value-returning counterpart of TxPresent.
func (m *Managed) TxLookup(id uuid.UUID, k base.Key) (base.Value, error) {
	tx, err := m.lookupTx(id)
	if err != nil {
		return base.Value{}, err
	}
	ov, err := m.txOverlay(tx)
	if err != nil {
		return base.Value{}, err
	}
	return ov.Lookup(k)
}

func (m *Managed) txOverlay(tx *Tx) (*dtable.OverlayDTable, error) {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	levels := make([]dtable.DTable, 0, len(m.runs)+2)
	for _, h := range m.runs {
		levels = append(levels, h.table)
	}
	levels = append(levels, m.memtable, tx.memtable)
	ov := dtable.NewOverlay(m.keyType, levels)
	if m.blobCmp != nil {
		if err := ov.SetBlobCmp(m.blobCmp); err != nil {
			return nil, err
		}
	}
	return ov, nil
}

// CheckTx reports whether transaction id can still commit: it conflicts,
// per spec.md §4.4/§8 invariant, only if the table's blob comparator was
// changed after the transaction began — there is no online schema
// evolution beyond that single knob (spec.md Non-goals).
func (m *Managed) CheckTx(id uuid.UUID) (bool, error) {
	tx, err := m.lookupTx(id)
	if err != nil {
		return false, err
	}
	m.viewMu.RLock()
	current := m.blobCmp
	m.viewMu.RUnlock()
	if tx.schemaCmp == nil && current == nil {
		return true, nil
	}
	if tx.schemaCmp == nil || current == nil {
		return false, nil
	}
	return tx.schemaCmp.Name() == current.Name(), nil
}

// CommitTx folds transaction id's buffered writes into the committed
// memtable atomically: each write is re-appended to the journal under
// the committed listener id (so it replays as an ordinary committed
// mutation after a crash) and applied to the committed memtable, then the
// transaction's own listener id is discarded. Per spec.md §4.4, commit
// fails with Conflict if the transaction is no longer consistent with the
// committed state.
func (m *Managed) CommitTx(id uuid.UUID) error {
	tx, err := m.lookupTx(id)
	if err != nil {
		return err
	}
	ok, err := m.CheckTx(id)
	if err != nil {
		return err
	}
	if !ok {
		return base.Errorf(base.KindConflict, "anvildb/managed: transaction %s is no longer consistent with the committed state", id)
	}

	it, err := tx.memtable.Iterator()
	if err != nil {
		return err
	}

	m.viewMu.Lock()
	lid := m.listenerID
	mt := m.memtable
	for valid := it.First(); valid; valid = it.Next() {
		v, err := it.Value()
		if err != nil {
			m.viewMu.Unlock()
			return err
		}
		k := it.Key()
		payload := memtable.EncodeMutation(k, v, false)
		if err := m.journal.Append(lid, payload); err != nil {
			m.viewMu.Unlock()
			return err
		}
		if err := mt.Insert(k, v, false); err != nil {
			m.viewMu.Unlock()
			return err
		}
	}
	m.viewMu.Unlock()

	if err := m.journal.Discard(tx.listener); err != nil {
		return err
	}

	m.txMu.Lock()
	delete(m.txs, id)
	m.txMu.Unlock()
	return nil
}

// AbortTx cancels transaction id: its buffered writes are dropped and its
// journal listener id is marked discarded, per spec.md §4.4/§5's
// cancellation note ("abort_tx cancels an in-progress abortable
// transaction").
func (m *Managed) AbortTx(id uuid.UUID) error {
	tx, err := m.lookupTx(id)
	if err != nil {
		return err
	}
	if err := m.journal.Discard(tx.listener); err != nil {
		return err
	}
	m.txMu.Lock()
	delete(m.txs, id)
	m.txMu.Unlock()
	return nil
}
