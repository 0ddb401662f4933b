// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ctable

import (
	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
)

// ProjectionIterator is RowIterator restricted to a fixed subset of
// columns, grounded on original_source/column_ctable.cpp's p_iter: row
// advance is driven by the lowest-indexed column in the subset (`start`
// in the original), with the same "skip tombstoned driving column" and
// "lockstep position advance" contract RowIterator has.
type ProjectionIterator struct {
	ct      *CTable
	idxs    []int // column indices, ascending
	cursors []dtable.Iterator

	valid   bool
	row     base.Key
	pending []RowEntry
}

// Projection returns a new iterator over only the named columns, in the
// order given by the ctable's own column order (not the order requested).
// It errors on an unknown or repeated column name.
func (ct *CTable) Projection(columns []string) (*ProjectionIterator, error) {
	idxs, err := sortedColumnSubset(ct.names, columns)
	if err != nil {
		return nil, err
	}
	cursors := make([]dtable.Iterator, len(idxs))
	for i, ci := range idxs {
		it, err := ct.columns[ci].Iterator()
		if err != nil {
			for _, opened := range cursors[:i] {
				opened.Close()
			}
			return nil, err
		}
		cursors[i] = it
	}
	return &ProjectionIterator{ct: ct, idxs: idxs, cursors: cursors}, nil
}

// Close releases every column cursor this iterator holds.
func (it *ProjectionIterator) Close() error {
	var first error
	for _, c := range it.cursors {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Valid reports whether the iterator is positioned at a surviving row.
func (it *ProjectionIterator) Valid() bool { return it.valid }

// Row returns the current row's key. Valid() must be true.
func (it *ProjectionIterator) Row() base.Key { return it.row }

// Entries returns the live (column, value) pairs among the projected
// columns for the current row. Valid() must be true.
func (it *ProjectionIterator) Entries() []RowEntry {
	return append([]RowEntry(nil), it.pending...)
}

// First positions at the first surviving row.
func (it *ProjectionIterator) First() bool {
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
	return it.settle(true)
}

// Last positions at the last surviving row.
func (it *ProjectionIterator) Last() bool {
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
	return it.settle(false)
}

// Next advances to the next surviving row.
func (it *ProjectionIterator) Next() bool {
	if !it.advanceAll(true) {
		it.valid = false
		return false
	}
	return it.settle(true)
}

// Prev moves to the previous surviving row.
func (it *ProjectionIterator) Prev() bool {
	if !it.advanceAll(false) {
		it.valid = false
		return false
	}
	return it.settle(false)
}

func (it *ProjectionIterator) advanceAll(forward bool) bool {
	var ok bool
	if forward {
		ok = it.cursors[0].Next()
	} else {
		ok = it.cursors[0].Prev()
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

func (it *ProjectionIterator) settle(forward bool) bool {
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
		if !it.advanceAll(forward) {
			it.valid = false
			return false
		}
	}
}

func (it *ProjectionIterator) collectRow() {
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
		it.pending = append(it.pending, RowEntry{Row: it.row, Column: it.ct.names[it.idxs[i]], Value: v})
	}
}
