// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"github.com/anvildb/anvil/internal/base"
)

// OverlayDTable presents an ordered list of dtables, oldest to newest, as
// a single logical map where newer tables shadow older ones. Grounded on
// original_source/itable_overlay.h and overlay_dtable.h, and on the
// goleveldb merge-iterator pattern in the retrieved example pack.
type OverlayDTable struct {
	keyType base.KeyType
	cmp     base.Comparator
	// levels holds the sub-tables oldest-first; levels[len-1] is newest
	// and wins ties, matching spec.md §4.3: "Walk newest -> oldest; the
	// first table that returns exists=true determines the answer."
	levels []DTable
}

// NewOverlay builds an overlay over levels, ordered oldest to newest.
func NewOverlay(keyType base.KeyType, levels []DTable) *OverlayDTable {
	return &OverlayDTable{keyType: keyType, levels: levels}
}

// KeyType implements dtable.DTable.
func (o *OverlayDTable) KeyType() base.KeyType { return o.keyType }

// Writable implements dtable.DTable: an overlay itself holds no storage
// and is never written to directly; internal/managed writes through its
// memtable, which is one of the levels.
func (o *OverlayDTable) Writable() bool { return false }

// Insert implements dtable.DTable.
func (o *OverlayDTable) Insert(base.Key, base.Value, bool) error {
	return base.Errorf(base.KindUnsupported, "anvildb/dtable: overlay is not directly writable")
}

// Remove implements dtable.DTable.
func (o *OverlayDTable) Remove(base.Key) error {
	return base.Errorf(base.KindUnsupported, "anvildb/dtable: overlay is not directly writable")
}

// SetBlobCmp implements dtable.DTable, propagating the comparator to every
// level before any comparison takes place, per spec.md §4.3: "When a
// custom comparator is installed, the overlay propagates it to each
// sub-iterator before any comparison occurs."
func (o *OverlayDTable) SetBlobCmp(cmp base.Comparator) error {
	for _, l := range o.levels {
		if err := l.SetBlobCmp(cmp); err != nil {
			return err
		}
	}
	o.cmp = cmp
	return nil
}

// Present implements dtable.DTable per spec.md §4.3's point-lookup rule.
func (o *OverlayDTable) Present(k base.Key) (base.Metablob, bool, error) {
	if err := base.ValidateType(k, o.keyType); err != nil {
		return base.Metablob{}, false, err
	}
	for i := len(o.levels) - 1; i >= 0; i-- {
		m, ok, err := o.levels[i].Present(k)
		if err != nil {
			return base.Metablob{}, false, err
		}
		if ok {
			v, err := o.levels[i].Lookup(k)
			if err != nil {
				return base.Metablob{}, false, err
			}
			if !v.Exists || v.IsTombstone() {
				return base.Metablob{}, false, nil // tombstone: hides all older levels
			}
			return m, true, nil
		}
	}
	return base.Metablob{}, false, nil
}

// Lookup implements dtable.DTable: walk newest to oldest; the first level
// with an entry decides the answer; a tombstone there means not found.
func (o *OverlayDTable) Lookup(k base.Key) (base.Value, error) {
	if err := base.ValidateType(k, o.keyType); err != nil {
		return base.Value{}, err
	}
	for i := len(o.levels) - 1; i >= 0; i-- {
		m, ok, err := o.levels[i].Present(k)
		if err != nil {
			return base.Value{}, err
		}
		if !ok {
			continue
		}
		v, err := o.levels[i].Lookup(k)
		if err != nil {
			return base.Value{}, err
		}
		if !m.Exists || v.IsTombstone() {
			return base.NotFound(), nil
		}
		return v, nil
	}
	return base.NotFound(), nil
}

// Size implements dtable.DTable by iterating; overlay has no cheap count
// since levels may shadow one another.
func (o *OverlayDTable) Size() int {
	it, err := o.Iterator()
	if err != nil {
		return 0
	}
	defer it.Close()
	n := 0
	for valid := it.First(); valid; valid = it.Next() {
		n++
	}
	return n
}

// Close implements dtable.DTable; the overlay borrows its levels (see
// spec.md §9's "avoid cyclic ownership" design note) and does not close
// them — the managed dtable that owns them does.
func (o *OverlayDTable) Close() error { return nil }

// Iterator implements dtable.DTable with a k-way merge over per-level
// iterators per spec.md §4.3.
func (o *OverlayDTable) Iterator() (Iterator, error) {
	subs := make([]Iterator, len(o.levels))
	for i, l := range o.levels {
		it, err := l.Iterator()
		if err != nil {
			for j := 0; j < i; j++ {
				subs[j].Close()
			}
			return Iterator{}, err
		}
		subs[i] = it
	}
	return NewIterator(&overlayIter{cmp: o.cmp, subs: subs, dir: dirNone}), nil
}

// NewRawMerge builds a tombstone-preserving newest-wins merge iterator
// over levels (oldest to newest). Unlike OverlayDTable.Iterator, which
// implements the read path and so hides a winning tombstone, this
// iterator returns a tombstone whenever it is the newest entry for a
// key. combine uses this, not OverlayDTable, to build the source/shadow
// iterators create() consumes: create()'s merge (internal/dtable/create.go)
// must see an in-range tombstone to carry it into the combined run or
// correctly drop it, per spec.md §8 invariant 3 ("lookups before and
// after a combine yield identical results for every key, including those
// masked by tombstones in older runs").
func NewRawMerge(cmp base.Comparator, levels []DTable) (Iterator, error) {
	subs := make([]Iterator, len(levels))
	for i, l := range levels {
		it, err := l.Iterator()
		if err != nil {
			for j := 0; j < i; j++ {
				subs[j].Close()
			}
			return Iterator{}, err
		}
		subs[i] = it
	}
	return NewIterator(&overlayIter{cmp: cmp, subs: subs, dir: dirNone, keepTombstones: true}), nil
}

type direction int

const (
	dirNone direction = iota
	dirForward
	dirBackward
)

// overlayIter is the k-way merge iterator. "valid[i]" tracks whether
// subs[i] is positioned at an entry that has not yet been consumed as
// stale; the invariants follow spec.md §4.3 verbatim: the winner is the
// newest valid sub whose key is extremal, ties advance every matching sub
// in lock-step, tombstone wins are skipped silently, and a direction flip
// re-seeds every sub from the current key because a sub that was stale in
// one direction may be the newest match in the other.
type overlayIter struct {
	cmp  base.Comparator
	subs []Iterator // oldest to newest, same order as levels
	dir  direction

	// keepTombstones disables the default read-path behavior of silently
	// skipping a winning tombstone. Set by NewRawMerge for callers (e.g.
	// combine) that need to observe a tombstone as the newest entry for a
	// key rather than have it hidden, per spec.md §8 invariant 3.
	keepTombstones bool

	curKey   base.Key
	curIdx   int // index into subs of the current winner
	hasCur   bool
}

func (it *overlayIter) First() bool {
	it.dir = dirForward
	for i := range it.subs {
		it.subs[i].First()
	}
	return it.advanceToWinner(true)
}

func (it *overlayIter) Last() bool {
	it.dir = dirBackward
	for i := range it.subs {
		it.subs[i].Last()
	}
	return it.advanceToWinner(false)
}

func (it *overlayIter) Next() bool {
	if it.dir != dirForward {
		it.reseed(it.curKey, dirForward, true)
	} else {
		it.stepPastCurrent(true)
	}
	return it.advanceToWinner(true)
}

func (it *overlayIter) Prev() bool {
	if it.dir != dirBackward {
		it.reseed(it.curKey, dirBackward, false)
	} else {
		it.stepPastCurrent(false)
	}
	return it.advanceToWinner(false)
}

// stepPastCurrent advances every sub-iterator currently sitting on
// curKey, so the next winner computation sees only keys strictly beyond
// (or before, for backward) the one just consumed.
func (it *overlayIter) stepPastCurrent(forward bool) {
	for i := range it.subs {
		if !it.subs[i].Valid() {
			continue
		}
		if base.Compare(it.cmp, it.subs[i].Key(), it.curKey) == 0 {
			if forward {
				it.subs[i].Next()
			} else {
				it.subs[i].Prev()
			}
		}
	}
}

// reseed re-synchronizes every sub-iterator to the lower/upper bound of
// from, needed whenever the merge direction flips: a sub skipped as stale
// while moving one way may be exactly the newest match moving the other
// way, so its position can't just be trusted from before the flip.
func (it *overlayIter) reseed(from base.Key, dir direction, forward bool) {
	it.dir = dir
	for i := range it.subs {
		valid, exact := it.subs[i].SeekGE(from)
		if forward {
			// SeekGE already gives the lower bound.
			_ = valid
			continue
		}
		// Backward: we want the largest key <= from, i.e. step back one
		// from the lower bound unless it was an exact match.
		if exact {
			continue
		}
		if valid {
			it.subs[i].Prev()
		} else {
			it.subs[i].Last()
		}
	}
	// Whichever direction, the entry exactly at `from` (if any) must
	// itself be skipped since it was already returned to the caller
	// before the direction flip.
	for i := range it.subs {
		if it.subs[i].Valid() && base.Compare(it.cmp, it.subs[i].Key(), from) == 0 {
			if forward {
				it.subs[i].Next()
			} else {
				it.subs[i].Prev()
			}
		}
	}
}

// advanceToWinner scans the current sub-iterator positions for the
// extremal key (smallest if forward, largest if backward), resolves the
// newest-wins tie, advances stale sub-iterators that shared the winning
// key, and silently skips a winning tombstone by recursing — exactly
// spec.md §4.3's merge invariants.
func (it *overlayIter) advanceToWinner(forward bool) bool {
	for {
		winner := -1
		for i := range it.subs {
			if !it.subs[i].Valid() {
				continue
			}
			if winner == -1 {
				winner = i
				continue
			}
			c := base.Compare(it.cmp, it.subs[i].Key(), it.subs[winner].Key())
			if (forward && c < 0) || (!forward && c > 0) {
				winner = i
			} else if c == 0 && i > winner {
				// Newest (higher level index) wins a tie.
				winner = i
			}
		}
		if winner == -1 {
			it.hasCur = false
			return false
		}

		key := it.subs[winner].Key()
		// Advance every sub sharing this key so they don't reappear as a
		// stale duplicate on the next step.
		for i := range it.subs {
			if i == winner || !it.subs[i].Valid() {
				continue
			}
			if base.Compare(it.cmp, it.subs[i].Key(), key) == 0 {
				if forward {
					it.subs[i].Next()
				} else {
					it.subs[i].Prev()
				}
			}
		}

		if !it.keepTombstones {
			v, err := it.subs[winner].Value()
			if err == nil && v.IsTombstone() {
				if forward {
					it.subs[winner].Next()
				} else {
					it.subs[winner].Prev()
				}
				continue
			}
		}

		it.curKey = key
		it.curIdx = winner
		it.hasCur = true
		return true
	}
}

func (it *overlayIter) SeekGE(k base.Key) (bool, bool) {
	it.dir = dirForward
	exactAny := false
	for i := range it.subs {
		valid, exact := it.subs[i].SeekGE(k)
		_ = valid
		if exact {
			exactAny = true
		}
	}
	valid := it.advanceToWinner(true)
	exact := valid && exactAny && base.Compare(it.cmp, it.curKey, k) == 0
	return valid, exact
}

func (it *overlayIter) Valid() bool { return it.hasCur }

func (it *overlayIter) Key() base.Key { return it.curKey }

func (it *overlayIter) Value() (base.Value, error) { return it.subs[it.curIdx].Value() }

func (it *overlayIter) Meta() base.Metablob { return it.subs[it.curIdx].Meta() }

// Index has no single well-defined meaning across a merge of
// differently-sized levels; it reports the winning sub-iterator's
// positional index within its own level as the closest analogue.
func (it *overlayIter) Index() int { return it.subs[it.curIdx].Index() }

func (it *overlayIter) Close() error {
	var firstErr error
	for i := range it.subs {
		if err := it.subs[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
