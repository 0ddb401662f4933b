// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package dtable implements the capability interface every sorted
// key/value map in the stack satisfies — sorted-run files on disk, the
// fixed-capacity cache wrapper, and the overlay merge view — plus the
// overlay itself. A separate in-memory implementation lives in
// internal/memtable; it satisfies this same interface structurally
// without importing this package, to keep the dependency graph acyclic
// (internal/managed is the first package that needs both).
//
// Modeled on the original source's "virtual dispatch across table kinds"
// design note (spec.md §9): the C++ inheritance hierarchy
// dtable -> {simple, array, cache, overlay, managed, ...} becomes a Go
// interface plus composition, with the overlay borrowing its sub-tables
// and the managed dtable owning and rebuilding them.
package dtable

import (
	"github.com/anvildb/anvil/internal/base"
)

// DTable is the capability interface every sorted key/value map in the
// stack implements: sorted-run files, the cache wrapper, the overlay, and
// (structurally, from internal/memtable) the memtable.
type DTable interface {
	// KeyType reports the type every key in this table has.
	KeyType() base.KeyType

	// Present reports whether k has an entry (including tombstones) and,
	// if so, a cheap metablob describing it.
	Present(k base.Key) (base.Metablob, bool, error)

	// Lookup returns k's value. If the entry is a tombstone, the
	// returned Value has Exists == true with nil bytes; if there
	// is no entry at all, Exists == false.
	Lookup(k base.Key) (base.Value, error)

	// Iterator returns a new bidirectional iterator over this table.
	Iterator() (Iterator, error)

	// Writable reports whether Insert/Remove are supported.
	Writable() bool

	// Insert stores k=v. append hints that k is known to be greater
	// than every existing key, letting an ordering check be skipped.
	Insert(k base.Key, v base.Value, append bool) error

	// Remove stores a tombstone at k (equivalent to Insert(k,
	// base.Tombstone(), false)).
	Remove(k base.Key) error

	// SetBlobCmp installs a comparator for blob-typed keys; it must be
	// called before any comparison takes place and fails with
	// InvalidArgument if this table already has a differently-named
	// comparator persisted (see base.Comparator).
	SetBlobCmp(cmp base.Comparator) error

	// Size returns the number of stored keys.
	Size() int

	// Close releases resources. It does not delete on-disk state.
	Close() error
}

// Iterator is the bidirectional cursor every DTable produces, supporting
// the operations spec.md §4.1 lists: first/last/next/prev, seek by key or
// by predicate, and cheap key()/meta()/index() access alongside the full
// value() fetch.
type Iterator struct {
	impl IteratorImpl
}

// IteratorImpl is the per-kind cursor every DTable implementation
// provides; Iterator wraps one so callers get a single concrete type
// regardless of which DTable produced it. Exported so implementations
// outside this package (internal/memtable) can construct a dtable.Iterator
// via NewIterator without this package needing to import them back.
type IteratorImpl interface {
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	SeekGE(k base.Key) (bool, bool) // (valid, exact)
	Valid() bool
	Key() base.Key
	Value() (base.Value, error)
	Meta() base.Metablob
	Index() int
	Close() error
}

// NewIterator wraps impl as a dtable.Iterator.
func NewIterator(impl IteratorImpl) Iterator { return Iterator{impl: impl} }

// First positions the iterator at the smallest key; returns Valid().
func (it Iterator) First() bool { return it.impl.First() }

// Last positions the iterator at the largest key; returns Valid().
func (it Iterator) Last() bool { return it.impl.Last() }

// Next advances to the next key in ascending order; returns Valid().
func (it Iterator) Next() bool { return it.impl.Next() }

// Prev moves to the previous key in ascending order; returns Valid().
func (it Iterator) Prev() bool { return it.impl.Prev() }

// SeekGE positions at the smallest key >= k (a lower bound). It returns
// whether the iterator is valid, and whether the position is an exact
// match for k.
func (it Iterator) SeekGE(k base.Key) (valid, exact bool) { return it.impl.SeekGE(k) }

// Valid reports whether the iterator is positioned at an entry.
func (it Iterator) Valid() bool { return it.impl.Valid() }

// Key returns the current entry's key. Valid() must be true.
func (it Iterator) Key() base.Key { return it.impl.Key() }

// Value fetches the current entry's full value. Valid() must be true.
func (it Iterator) Value() (base.Value, error) { return it.impl.Value() }

// Meta returns a cheap descriptor of the current entry's value.
func (it Iterator) Meta() base.Metablob { return it.impl.Meta() }

// Index returns the current entry's zero-based ordinal position.
func (it Iterator) Index() int { return it.impl.Index() }

// Close releases the iterator's resources.
func (it Iterator) Close() error { return it.impl.Close() }

// KeyPredicate is a monotone ordering test used by SeekWithPredicate: it
// reports whether k falls before the target position (anything like "k <
// target"). The predicate must be monotone over the table's key order —
// spec.md §9 fixes the otherwise-underspecified seek(predicate) contract
// to "lower-bound under the predicate treated as a monotone key order".
type KeyPredicate func(k base.Key) bool

// SeekWithPredicate positions at the first key for which pred no longer
// holds — the lower bound under pred treated as a monotone key order, per
// spec.md §9. It returns Valid(). Defined once here, generically over
// First/Next/Key, rather than per dtable kind: every Iterator this
// package or internal/memtable produces gets it for free, including the
// overlay's merge iterator.
func (it Iterator) SeekWithPredicate(pred KeyPredicate) bool {
	if !it.First() {
		return false
	}
	for pred(it.Key()) {
		if !it.Next() {
			return false
		}
	}
	return true
}
