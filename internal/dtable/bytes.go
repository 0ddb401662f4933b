// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"encoding/binary"
	"path/filepath"
)

func putU32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }
func getU32(buf []byte) uint32    { return binary.LittleEndian.Uint32(buf) }
func putU64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }
func getU64(buf []byte) uint64    { return binary.LittleEndian.Uint64(buf) }

// splitPath separates a full file path into its parent directory and
// base name, the two pieces txfile.Tx needs (a transaction is rooted at a
// directory and stages files by name within it).
func splitPath(path string) (dir, name string) {
	return filepath.Dir(path), filepath.Base(path)
}
