// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package journal implements the append-only, crash-safe log of
// (listener_id, payload) records that every memtable and abortable
// transaction replays on open. Grounded on the original source's
// sys_journal.cpp and, for the replay-on-open discipline, on the
// ethereum triedb/pathdb journal files in the retrieved example pack.
package journal

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/anvildb/anvil/internal/base"
)

const (
	magic   uint32 = 0x4A524E4C // "JRNL"
	version uint32 = 1

	headerLen = 8 // magic(4) + version(4)

	// discardLength is the length sentinel meaning "discard all entries
	// for this listener id", per spec.md §6.
	discardLength uint64 = math.MaxUint64

	recordPrefixLen = 8 + 8 // listener id (8) + length (8)
	checksumLen     = 8
)

// ListenerID identifies a journal consumer (a memtable generation, or an
// abortable transaction) so replayed records route to the right in-memory
// listener.
type ListenerID uint64

// record is the decoded form of one journal entry.
type record struct {
	listener ListenerID
	discard  bool
	payload  []byte
}

func encodeHeader() []byte {
	buf := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], version)
	return buf
}

func decodeHeader(buf []byte) error {
	if len(buf) < headerLen {
		return base.CorruptionErrorf("anvildb/journal: header too short (%d bytes)", base.Safe(len(buf)))
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != magic {
		return base.CorruptionErrorf("anvildb/journal: bad magic 0x%x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:8]); got != version {
		return base.CorruptionErrorf("anvildb/journal: unsupported version %d", base.Safe(got))
	}
	return nil
}

// encodeRecord serializes r as {listener_id, length, payload, checksum}.
// The checksum covers the listener id, length and payload so a torn write
// is detected as corruption rather than silently replayed with garbage.
func encodeRecord(r record) []byte {
	length := discardLength
	if !r.discard {
		length = uint64(len(r.payload))
	}
	buf := make([]byte, recordPrefixLen+len(r.payload)+checksumLen)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.listener))
	binary.LittleEndian.PutUint64(buf[8:16], length)
	if !r.discard {
		copy(buf[recordPrefixLen:], r.payload)
	}
	sum := xxhash.Sum64(buf[:recordPrefixLen+len(r.payload)])
	binary.LittleEndian.PutUint64(buf[len(buf)-checksumLen:], sum)
	return buf
}

// decodeRecord parses one record starting at buf[0], returning the record
// and the number of bytes it consumed.
func decodeRecord(buf []byte) (record, int, error) {
	if len(buf) < recordPrefixLen {
		return record{}, 0, base.CorruptionErrorf("anvildb/journal: truncated record header")
	}
	listener := ListenerID(binary.LittleEndian.Uint64(buf[0:8]))
	length := binary.LittleEndian.Uint64(buf[8:16])

	discard := length == discardLength
	payloadLen := 0
	if !discard {
		payloadLen = int(length)
	}
	total := recordPrefixLen + payloadLen + checksumLen
	if len(buf) < total {
		return record{}, 0, base.CorruptionErrorf("anvildb/journal: truncated record payload")
	}

	wantSum := binary.LittleEndian.Uint64(buf[total-checksumLen : total])
	gotSum := xxhash.Sum64(buf[:total-checksumLen])
	if wantSum != gotSum {
		return record{}, 0, base.CorruptionErrorf("anvildb/journal: checksum mismatch for listener %d", base.Safe(listener))
	}

	var payload []byte
	if !discard {
		payload = append([]byte(nil), buf[recordPrefixLen:recordPrefixLen+payloadLen]...)
	}
	return record{listener: listener, discard: discard, payload: payload}, total, nil
}
