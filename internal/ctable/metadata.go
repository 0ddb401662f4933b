// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ctable

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/txfile"
)

// cct_meta's layout mirrors original_source/column_ctable.cpp's create()/
// init(): a packed header {magic, version, key_type, columns} followed by
// columns records of {length uint32, utf8 name}, in column order.
const metaFileName = "cct_meta"

const (
	metaMagic   uint32 = 0x36BC4B9D // COLUMN_CTABLE_MAGIC, kept verbatim
	metaVersion uint32 = 1          // bumped from the original's 0: we add key_type to the header
)

type metadata struct {
	keyType base.KeyType
	columns []string
}

func encodeMetadata(m metadata) []byte {
	size := 4 + 4 + 1 + 4
	for _, name := range m.columns {
		size += 4 + len(name)
	}
	buf := make([]byte, 0, size)

	var hdr [4 + 4 + 1 + 4]byte
	binary.LittleEndian.PutUint32(hdr[0:], metaMagic)
	binary.LittleEndian.PutUint32(hdr[4:], metaVersion)
	hdr[8] = byte(m.keyType)
	binary.LittleEndian.PutUint32(hdr[9:], uint32(len(m.columns)))
	buf = append(buf, hdr[:]...)

	for _, name := range m.columns {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(name)))
		buf = append(buf, length[:]...)
		buf = append(buf, name...)
	}
	return buf
}

func decodeMetadata(buf []byte) (metadata, error) {
	const fixedLen = 4 + 4 + 1 + 4
	if len(buf) < fixedLen {
		return metadata{}, base.CorruptionErrorf("anvildb/ctable: metadata header too short (%d bytes)", base.Safe(len(buf)))
	}
	if got := binary.LittleEndian.Uint32(buf[0:]); got != metaMagic {
		return metadata{}, base.CorruptionErrorf("anvildb/ctable: bad metadata magic 0x%x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:]); got != metaVersion {
		return metadata{}, base.CorruptionErrorf("anvildb/ctable: unsupported metadata version %d", base.Safe(got))
	}
	m := metadata{keyType: base.KeyType(buf[8])}
	columns := binary.LittleEndian.Uint32(buf[9:])
	off := fixedLen
	m.columns = make([]string, columns)
	for i := range m.columns {
		if off+4 > len(buf) {
			return metadata{}, base.CorruptionErrorf("anvildb/ctable: truncated column name table")
		}
		length := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		if off+length > len(buf) {
			return metadata{}, base.CorruptionErrorf("anvildb/ctable: truncated column name")
		}
		m.columns[i] = string(buf[off : off+length])
		off += length
	}
	if off != len(buf) {
		return metadata{}, base.CorruptionErrorf("anvildb/ctable: trailing bytes after column name table")
	}
	return m, nil
}

func readMetadata(dir string) (metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return metadata{}, base.Wrap(base.KindIoError, err, "anvildb/ctable: reading metadata")
	}
	return decodeMetadata(data)
}

func writeMetadata(dir string, m metadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/ctable: creating directory")
	}
	tx := txfile.Begin(dir)
	tx.Write(metaFileName, encodeMetadata(m))
	return tx.Commit()
}

const columnsDirName = "columns"
