// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/journal"
	"github.com/anvildb/anvil/internal/txfile"
)

// RunKind classifies a persisted run entry, per spec.md §3's managed-
// dtable metadata ("per-run entries (run_number, kind in {REGBASE,
// FASTBASE, JOURNAL})"). JOURNAL never appears in a persisted entry in
// this implementation — the memtable is never itself an on-disk run — but
// the tag is kept for fidelity with the original's enum.
type RunKind uint8

const (
	RunKindRegbase RunKind = iota
	RunKindFastbase
	RunKindJournal
)

const metaFileName = "managed_meta"

const (
	metaMagic   uint32 = 0x4D445442 // "MDTB"
	metaVersion uint32 = 1
)

type runEntry struct {
	number uint32
	kind   RunKind
}

// metadata is the decoded form of the managed-dtable metadata file, per
// spec.md §6: "packed header {magic, version, key_type, combine_count,
// journal listener id, ddt_count, ddt_next, digest_interval, digested,
// combine_interval, combined, autocombine_*}, followed by ddt_count
// packed entries {run_number:u32, kind:u8}."
type metadata struct {
	keyType       base.KeyType
	combineCount  uint32 // auto-combine threshold: accumulated digests
	listenerID    journal.ListenerID
	nextRun       uint32
	digestInterval  uint32 // seconds
	lastDigestUnix  int64
	combineInterval uint32 // seconds
	lastCombineUnix int64
	autocombine        bool
	autocombineDigests uint32
	runs               []runEntry
}

func encodeMetadata(m metadata) []byte {
	buf := make([]byte, 0, 64+len(m.runs)*5)
	var hdr [4 + 4 + 1 + 4 + 8 + 4 + 4 + 8 + 8 + 8 + 8 + 1 + 4]byte
	i := 0
	binary.LittleEndian.PutUint32(hdr[i:], metaMagic)
	i += 4
	binary.LittleEndian.PutUint32(hdr[i:], metaVersion)
	i += 4
	hdr[i] = byte(m.keyType)
	i++
	binary.LittleEndian.PutUint32(hdr[i:], m.combineCount)
	i += 4
	binary.LittleEndian.PutUint64(hdr[i:], uint64(m.listenerID))
	i += 8
	binary.LittleEndian.PutUint32(hdr[i:], uint32(len(m.runs)))
	i += 4
	binary.LittleEndian.PutUint32(hdr[i:], m.nextRun)
	i += 4
	binary.LittleEndian.PutUint64(hdr[i:], uint64(m.digestInterval))
	i += 8
	binary.LittleEndian.PutUint64(hdr[i:], uint64(m.lastDigestUnix))
	i += 8
	binary.LittleEndian.PutUint64(hdr[i:], uint64(m.combineInterval))
	i += 8
	binary.LittleEndian.PutUint64(hdr[i:], uint64(m.lastCombineUnix))
	i += 8
	if m.autocombine {
		hdr[i] = 1
	}
	i++
	binary.LittleEndian.PutUint32(hdr[i:], m.autocombineDigests)
	i += 4

	buf = append(buf, hdr[:i]...)
	for _, e := range m.runs {
		var tmp [5]byte
		binary.LittleEndian.PutUint32(tmp[0:4], e.number)
		tmp[4] = byte(e.kind)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func decodeMetadata(buf []byte) (metadata, error) {
	const fixedLen = 4 + 4 + 1 + 4 + 8 + 4 + 4 + 8 + 8 + 8 + 8 + 1 + 4
	if len(buf) < fixedLen {
		return metadata{}, base.CorruptionErrorf("anvildb/managed: metadata header too short (%d bytes)", base.Safe(len(buf)))
	}
	var m metadata
	i := 0
	if got := binary.LittleEndian.Uint32(buf[i:]); got != metaMagic {
		return metadata{}, base.CorruptionErrorf("anvildb/managed: bad metadata magic 0x%x", got)
	}
	i += 4
	if got := binary.LittleEndian.Uint32(buf[i:]); got != metaVersion {
		return metadata{}, base.CorruptionErrorf("anvildb/managed: unsupported metadata version %d", base.Safe(got))
	}
	i += 4
	m.keyType = base.KeyType(buf[i])
	i++
	m.combineCount = binary.LittleEndian.Uint32(buf[i:])
	i += 4
	m.listenerID = journal.ListenerID(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	ddtCount := binary.LittleEndian.Uint32(buf[i:])
	i += 4
	m.nextRun = binary.LittleEndian.Uint32(buf[i:])
	i += 4
	m.digestInterval = uint32(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	m.lastDigestUnix = int64(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	m.combineInterval = uint32(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	m.lastCombineUnix = int64(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	m.autocombine = buf[i] != 0
	i++
	m.autocombineDigests = binary.LittleEndian.Uint32(buf[i:])
	i += 4

	rest := buf[i:]
	if len(rest) != int(ddtCount)*5 {
		return metadata{}, base.CorruptionErrorf("anvildb/managed: run entry table size mismatch")
	}
	m.runs = make([]runEntry, ddtCount)
	for j := range m.runs {
		off := j * 5
		m.runs[j] = runEntry{
			number: binary.LittleEndian.Uint32(rest[off : off+4]),
			kind:   RunKind(rest[off+4]),
		}
	}
	return m, nil
}

func readMetadata(dir string) (metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return metadata{}, base.Wrap(base.KindIoError, err, "anvildb/managed: reading metadata")
	}
	return decodeMetadata(data)
}

func writeMetadata(dir string, m metadata) error {
	tx := txfile.Begin(dir)
	tx.Write(metaFileName, encodeMetadata(m))
	return tx.Commit()
}

func runFileName(number uint32) string {
	return filepath.Join(runDirName, runBaseName(number))
}

func runBaseName(number uint32) string {
	var b [10]byte
	for i := 9; i >= 0; i-- {
		b[i] = byte('0' + number%10)
		number /= 10
	}
	return "run_" + string(b[:])
}

const runDirName = "runs"
