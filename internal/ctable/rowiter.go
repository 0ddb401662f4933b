// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ctable

import (
	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
)

// RowEntry is one (row, column, value) triple yielded by RowIterator or
// ProjectionIterator.
type RowEntry struct {
	Row    base.Key
	Column string
	Value  base.Value
}

// RowIterator advances row by row, driven by column 0 exactly as
// original_source/column_ctable.cpp's iter does: every column's cursor is
// stepped in lockstep by position (not reseeked by key), so this assumes
// every column's dtable has exactly one entry — value or tombstone — per
// row. Rows whose column-0 entry is a tombstone are skipped entirely
// (DESIGN.md Open Question decision 1: the original's column-0-driven
// row-presence contract, not a presence union across columns).
//
// Within a surviving row, only columns whose own value is a live (non-
// tombstone) entry are yielded, per spec.md §4.5's "for each row, yields
// (row, col, value) for every column whose value at that row exists."
type RowIterator struct {
	ct      *CTable
	cursors []dtable.Iterator

	valid   bool
	row     base.Key
	pending []RowEntry
	pos     int
}

// Iterator returns a new row-major iterator positioned before the first
// row; call First or Next to begin.
func (ct *CTable) Iterator() (*RowIterator, error) {
	cursors := make([]dtable.Iterator, len(ct.columns))
	for i, col := range ct.columns {
		it, err := col.Iterator()
		if err != nil {
			for _, opened := range cursors[:i] {
				opened.Close()
			}
			return nil, err
		}
		cursors[i] = it
	}
	return &RowIterator{ct: ct, cursors: cursors}, nil
}

// Close releases every column cursor this iterator holds.
func (it *RowIterator) Close() error {
	var first error
	for _, c := range it.cursors {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Valid reports whether the iterator is positioned at a surviving row.
func (it *RowIterator) Valid() bool { return it.valid }

// Row returns the current row's key. Valid() must be true.
func (it *RowIterator) Row() base.Key { return it.row }

// Entries returns the live (column, value) pairs for the current row, in
// column order. Valid() must be true.
func (it *RowIterator) Entries() []RowEntry {
	return append([]RowEntry(nil), it.pending...)
}

// First positions at the first surviving row.
func (it *RowIterator) First() bool {
	ok := true
	for _, c := range it.cursors {
		if !c.First() {
			ok = false
		}
	}
	if !ok {
		it.valid = false
		return false
	}
	return it.settleForward()
}

// Last positions at the last surviving row.
func (it *RowIterator) Last() bool {
	ok := true
	for _, c := range it.cursors {
		if !c.Last() {
			ok = false
		}
	}
	if !ok {
		it.valid = false
		return false
	}
	return it.settleBackward()
}

// Next advances to the next surviving row.
func (it *RowIterator) Next() bool {
	if !it.advanceAll(true) {
		it.valid = false
		return false
	}
	return it.settleForward()
}

// Prev moves to the previous surviving row.
func (it *RowIterator) Prev() bool {
	if !it.advanceAll(false) {
		it.valid = false
		return false
	}
	return it.settleBackward()
}

func (it *RowIterator) advanceAll(forward bool) bool {
	primary := it.cursors[0]
	var ok bool
	if forward {
		ok = primary.Next()
	} else {
		ok = primary.Prev()
	}
	for i := 1; i < len(it.cursors); i++ {
		if forward {
			it.cursors[i].Next()
		} else {
			it.cursors[i].Prev()
		}
	}
	return ok
}

// settleForward skips rows whose column-0 entry is a tombstone, mirroring
// all_next_skip, then collects the current row's live column entries.
func (it *RowIterator) settleForward() bool {
	for {
		if !it.cursors[0].Valid() {
			it.valid = false
			return false
		}
		v0, err := it.cursors[0].Value()
		if err == nil && !v0.IsTombstone() {
			it.collectRow()
			return true
		}
		if !it.advanceAll(true) {
			it.valid = false
			return false
		}
	}
}

func (it *RowIterator) settleBackward() bool {
	for {
		if !it.cursors[0].Valid() {
			it.valid = false
			return false
		}
		v0, err := it.cursors[0].Value()
		if err == nil && !v0.IsTombstone() {
			it.collectRow()
			return true
		}
		if !it.advanceAll(false) {
			it.valid = false
			return false
		}
	}
}

func (it *RowIterator) collectRow() {
	it.valid = true
	it.row = it.cursors[0].Key()
	it.pending = it.pending[:0]
	for i, c := range it.cursors {
		if !c.Valid() {
			continue
		}
		v, err := c.Value()
		if err != nil || !v.Exists || v.IsTombstone() {
			continue
		}
		it.pending = append(it.pending, RowEntry{Row: it.row, Column: it.ct.names[i], Value: v})
	}
}
