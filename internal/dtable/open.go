// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"encoding/binary"
	"os"

	"github.com/anvildb/anvil/internal/base"
)

// DetectAndOpen opens a sorted-run file at path without the caller needing
// to know in advance whether digest or combine chose the generic or
// dense-array layout for it — it peeks the header's magic value and
// dispatches to OpenSimple or OpenArray. Grounded on spec.md §3's "magic
// values identify the variant" and used by internal/managed when
// reopening a run whose on-disk shape isn't recorded anywhere else.
func DetectAndOpen(path string, cmp base.Comparator) (DTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, base.Wrap(base.KindIoError, err, "anvildb/dtable: reading %s", path)
	}
	if len(data) < 4 {
		return nil, base.CorruptionErrorf("anvildb/dtable: %s too short to contain a header", path)
	}
	switch binary.LittleEndian.Uint32(data[:4]) {
	case magicSimple:
		return OpenSimple(path, cmp)
	case magicArray:
		return OpenArray(path)
	default:
		return nil, base.CorruptionErrorf("anvildb/dtable: %s has unrecognized magic", path)
	}
}
