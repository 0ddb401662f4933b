// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"github.com/anvildb/anvil/internal/base"
)

// mergedEntry is one row of the merge walk between a source and an
// optional shadow iterator, used by both CreateSimple and CreateArray.
type mergedEntry struct {
	key   base.Key
	value base.Value
}

// mergeSourceShadow implements the create(source, shadow) contract from
// spec.md §4.1 and the exact set it must produce per §8 invariant 5:
// "A run file produced by create(src, shadow) contains exactly: every key
// from src plus every key present as a tombstone in shadow and absent
// from src." Every key from source is emitted verbatim (value or
// tombstone); a shadow-only tombstone is emitted only when source has no
// entry for that key; anything else absent from source is omitted. The
// special case of combine(0, last) dropping source's own tombstones
// (since there is no older run left to unmask) is implemented by the
// caller passing this function's result through filterTombstones, not
// here — this function always honors invariant 5 literally.
func mergeSourceShadow(cmp base.Comparator, source, shadow Iterator, hasShadow bool) ([]mergedEntry, error) {
	var out []mergedEntry

	sourceValid := source.First()
	var shadowValid bool
	if hasShadow {
		shadowValid = shadow.First()
	}

	for sourceValid || shadowValid {
		switch {
		case sourceValid && (!shadowValid || base.Compare(cmp, source.Key(), shadow.Key()) < 0):
			v, err := source.Value()
			if err != nil {
				return nil, err
			}
			out = append(out, mergedEntry{key: source.Key(), value: v})
			sourceValid = source.Next()

		case shadowValid && (!sourceValid || base.Compare(cmp, shadow.Key(), source.Key()) < 0):
			v, err := shadow.Value()
			if err != nil {
				return nil, err
			}
			if v.IsTombstone() {
				out = append(out, mergedEntry{key: shadow.Key(), value: v})
			}
			shadowValid = shadow.Next()

		default: // equal keys: source wins, shadow's entry is redundant
			v, err := source.Value()
			if err != nil {
				return nil, err
			}
			out = append(out, mergedEntry{key: source.Key(), value: v})
			sourceValid = source.Next()
			shadowValid = shadow.Next()
		}
	}

	return out, nil
}

// filterTombstones removes tombstone entries from a merge result so
// combine() can drop a source's own tombstones when there is no shadow (first == 0):
// nothing older remains to unmask, so the tombstone carries no
// information forward. Implemented as a slice filter rather than a
// streaming wrapper since CreateSimple/CreateArray already materialize
// the merge result before encoding.
func filterTombstones(entries []mergedEntry) []mergedEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.value.IsTombstone() {
			continue
		}
		out = append(out, e)
	}
	return out
}
