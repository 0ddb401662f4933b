// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"encoding/binary"
	"math"

	"github.com/anvildb/anvil/internal/base"
)

// valueTag distinguishes a tombstone from a real value with bytes,
// inside one mutation record.
type valueTag uint8

const (
	vtTombstone valueTag = iota
	vtValid
)

// EncodeMutation serializes a single Insert/Remove call into the payload
// journal.Append stores for a memtable's listener id. This is the wire
// format internal/managed replays on open to rebuild a memtable's state,
// satisfying spec.md invariant 5 ("The memtable's contents ≡ the
// journal-replay of entries tagged with the managed dtable's listener id
// since the last digest").
func EncodeMutation(k base.Key, v base.Value, appendHint bool) []byte {
	var buf []byte
	buf = append(buf, byte(k.Type()))
	if appendHint {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	switch k.Type() {
	case base.KeyTypeUint32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], k.Uint32())
		buf = append(buf, tmp[:]...)
	case base.KeyTypeDouble:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(k.Double()))
		buf = append(buf, tmp[:]...)
	case base.KeyTypeString:
		buf = appendLenPrefixed(buf, []byte(k.String()))
	case base.KeyTypeBlob:
		buf = appendLenPrefixed(buf, k.Blob())
	}

	if v.IsTombstone() {
		buf = append(buf, byte(vtTombstone))
	} else {
		buf = append(buf, byte(vtValid))
		buf = appendLenPrefixed(buf, v.Bytes)
	}
	return buf
}

// DecodeMutation is the inverse of EncodeMutation.
func DecodeMutation(payload []byte) (base.Key, base.Value, bool, error) {
	if len(payload) < 2 {
		return base.Key{}, base.Value{}, false, base.CorruptionErrorf("anvildb/memtable: truncated mutation record")
	}
	keyType := base.KeyType(payload[0])
	appendHint := payload[1] == 1
	buf := payload[2:]

	var k base.Key
	switch keyType {
	case base.KeyTypeUint32:
		if len(buf) < 4 {
			return base.Key{}, base.Value{}, false, base.CorruptionErrorf("anvildb/memtable: truncated uint32 key")
		}
		k = base.NewUint32Key(binary.LittleEndian.Uint32(buf[:4]))
		buf = buf[4:]
	case base.KeyTypeDouble:
		if len(buf) < 8 {
			return base.Key{}, base.Value{}, false, base.CorruptionErrorf("anvildb/memtable: truncated double key")
		}
		k = base.NewDoubleKey(math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])))
		buf = buf[8:]
	case base.KeyTypeString:
		s, rest, err := readLenPrefixed(buf)
		if err != nil {
			return base.Key{}, base.Value{}, false, err
		}
		k = base.NewStringKey(string(s))
		buf = rest
	case base.KeyTypeBlob:
		b, rest, err := readLenPrefixed(buf)
		if err != nil {
			return base.Key{}, base.Value{}, false, err
		}
		k = base.NewBlobKey(b)
		buf = rest
	default:
		return base.Key{}, base.Value{}, false, base.CorruptionErrorf("anvildb/memtable: bad key type tag %d", base.Safe(keyType))
	}

	if len(buf) < 1 {
		return base.Key{}, base.Value{}, false, base.CorruptionErrorf("anvildb/memtable: truncated value tag")
	}
	switch valueTag(buf[0]) {
	case vtTombstone:
		return k, base.Tombstone(), appendHint, nil
	case vtValid:
		b, _, err := readLenPrefixed(buf[1:])
		if err != nil {
			return base.Key{}, base.Value{}, false, err
		}
		return k, base.Value{Exists: true, Bytes: b}, appendHint, nil
	default:
		return base.Key{}, base.Value{}, false, base.CorruptionErrorf("anvildb/memtable: bad value tag %d", base.Safe(buf[0]))
	}
}

func appendLenPrefixed(buf, data []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
	buf = append(buf, tmp[:]...)
	return append(buf, data...)
}

func readLenPrefixed(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, base.CorruptionErrorf("anvildb/memtable: truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, base.CorruptionErrorf("anvildb/memtable: truncated length-prefixed field")
	}
	return append([]byte(nil), buf[:n]...), buf[n:], nil
}

// ReplayInto applies a sequence of EncodeMutation payloads (in append
// order) to an empty Memtable, reconstructing the state the journal
// recorded for one listener id.
func ReplayInto(m *Memtable, payloads [][]byte) error {
	for _, p := range payloads {
		k, v, appendHint, err := DecodeMutation(p)
		if err != nil {
			return err
		}
		if err := m.Insert(k, v, appendHint); err != nil {
			return err
		}
	}
	return nil
}
