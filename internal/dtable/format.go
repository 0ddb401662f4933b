// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"encoding/binary"
	"math"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	kzstd "github.com/klauspost/compress/zstd"

	"github.com/anvildb/anvil/internal/base"
)

// Sorted-run file magic values, one per variant (spec.md §3: "Magic
// values identify the variant"). Modeled on the teacher's footer magic
// constants (levelDBMagic/rocksDBMagic/pebbleDBMagic in sstable/table.go)
// — a dedicated magic per on-disk shape rather than one flag bit.
const (
	magicSimple uint32 = 0x53494D31 // "SIM1"
	magicArray  uint32 = 0x41525231 // "ARR1"

	formatVersion uint32 = 1
)

// Compression identifies the codec applied to a sorted-run file's value
// area. Two real codecs are wired (not one) per SPEC_FULL.md's domain
// stack table: snappy for the default/fast path, and two zstd bindings —
// klauspost/compress/zstd for fresh runs written by digest, DataDog/zstd
// for runs rewritten by combine at a higher compression level, since
// combined runs are colder and worth spending more CPU to shrink.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionZstdFast
	CompressionZstdHigh
)

func compressValueArea(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	case CompressionZstdFast:
		enc, err := kzstd.NewWriter(nil, kzstd.WithEncoderLevel(kzstd.SpeedDefault))
		if err != nil {
			return nil, base.Wrap(base.KindIoError, err, "anvildb/dtable: creating zstd encoder")
		}
		out := enc.EncodeAll(data, nil)
		_ = enc.Close()
		return out, nil
	case CompressionZstdHigh:
		out, err := zstd.CompressLevel(nil, data, 19)
		if err != nil {
			return nil, base.Wrap(base.KindIoError, err, "anvildb/dtable: zstd (combine) compress")
		}
		return out, nil
	default:
		return nil, base.Errorf(base.KindInvalidArgument, "anvildb/dtable: unknown compression %d", base.Safe(c))
	}
}

func decompressValueArea(c Compression, data []byte, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, base.CorruptionErrorf("anvildb/dtable: snappy decode failed: %v", err)
		}
		return out, nil
	case CompressionZstdFast:
		dec, err := kzstd.NewReader(nil)
		if err != nil {
			return nil, base.Wrap(base.KindIoError, err, "anvildb/dtable: creating zstd decoder")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, make([]byte, 0, rawSize))
		if err != nil {
			return nil, base.CorruptionErrorf("anvildb/dtable: zstd decode failed: %v", err)
		}
		return out, nil
	case CompressionZstdHigh:
		out, err := zstd.Decompress(make([]byte, 0, rawSize), data)
		if err != nil {
			return nil, base.CorruptionErrorf("anvildb/dtable: zstd (combine) decode failed: %v", err)
		}
		return out, nil
	default:
		return nil, base.Errorf(base.KindInvalidArgument, "anvildb/dtable: unknown compression %d", base.Safe(c))
	}
}

// header is the little-endian packed preamble common to both variants,
// per spec.md §3: "magic, version, key type, key count, minimum key (for
// dense-array variant), array size, value size".
type header struct {
	magic       uint32
	version     uint32
	keyType     base.KeyType
	compression Compression
	comparator  string // blob comparator name; empty unless keyType == Blob
	keyCount    uint64
	minKey      uint64 // dense-array variant only
	arraySize   uint64 // dense-array variant only; 0 for simple
	valueSize   uint64 // fixed value-area width; 0 means offset table
}

const headerFixedLen = 4 + 4 + 1 + 1 + 8 + 8 + 8 + 8 + 4 // + comparator name bytes

func encodeHeader(h header) []byte {
	nameBytes := []byte(h.comparator)
	buf := make([]byte, headerFixedLen+len(nameBytes))
	binary.LittleEndian.PutUint32(buf[0:4], h.magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.version)
	buf[8] = byte(h.keyType)
	buf[9] = byte(h.compression)
	binary.LittleEndian.PutUint64(buf[10:18], h.keyCount)
	binary.LittleEndian.PutUint64(buf[18:26], h.minKey)
	binary.LittleEndian.PutUint64(buf[26:34], h.arraySize)
	binary.LittleEndian.PutUint64(buf[34:42], h.valueSize)
	binary.LittleEndian.PutUint32(buf[42:46], uint32(len(nameBytes)))
	copy(buf[46:], nameBytes)
	return buf
}

func decodeHeader(buf []byte, wantMagic uint32) (header, int, error) {
	if len(buf) < headerFixedLen {
		return header{}, 0, base.CorruptionErrorf("anvildb/dtable: header too short (%d bytes)", base.Safe(len(buf)))
	}
	var h header
	h.magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.magic != wantMagic {
		return header{}, 0, base.CorruptionErrorf("anvildb/dtable: bad magic 0x%x", h.magic)
	}
	h.version = binary.LittleEndian.Uint32(buf[4:8])
	if h.version != formatVersion {
		return header{}, 0, base.CorruptionErrorf("anvildb/dtable: unsupported version %d", base.Safe(h.version))
	}
	h.keyType = base.KeyType(buf[8])
	h.compression = Compression(buf[9])
	h.keyCount = binary.LittleEndian.Uint64(buf[10:18])
	h.minKey = binary.LittleEndian.Uint64(buf[18:26])
	h.arraySize = binary.LittleEndian.Uint64(buf[26:34])
	h.valueSize = binary.LittleEndian.Uint64(buf[34:42])
	nameLen := binary.LittleEndian.Uint32(buf[42:46])
	total := headerFixedLen + int(nameLen)
	if len(buf) < total {
		return header{}, 0, base.CorruptionErrorf("anvildb/dtable: truncated comparator name")
	}
	h.comparator = string(buf[46:total])
	return h, total, nil
}

// checksumBlock appends an 8-byte xxhash64 checksum to buf, grounded on
// the teacher's per-block checksum trailer design (sstable footer's
// ChecksumTypeXXHash64 option) rather than one whole-file checksum.
func checksumBlock(buf []byte) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], xxhash.Sum64(buf))
	return append(buf, tmp[:]...)
}

func verifyChecksum(buf []byte) ([]byte, error) {
	if len(buf) < 8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: block too short for checksum")
	}
	data := buf[:len(buf)-8]
	want := binary.LittleEndian.Uint64(buf[len(buf)-8:])
	if xxhash.Sum64(data) != want {
		return nil, base.CorruptionErrorf("anvildb/dtable: block checksum mismatch")
	}
	return data, nil
}

func encodeKeyBytes(k base.Key) []byte {
	switch k.Type() {
	case base.KeyTypeUint32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], k.Uint32())
		return buf[:]
	case base.KeyTypeDouble:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(k.Double()))
		return buf[:]
	case base.KeyTypeString:
		return []byte(k.String())
	case base.KeyTypeBlob:
		return k.Blob()
	default:
		return nil
	}
}

func decodeKeyBytes(t base.KeyType, buf []byte) base.Key {
	switch t {
	case base.KeyTypeUint32:
		return base.NewUint32Key(binary.LittleEndian.Uint32(buf))
	case base.KeyTypeDouble:
		return base.NewDoubleKey(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	case base.KeyTypeString:
		return base.NewStringKey(string(buf))
	case base.KeyTypeBlob:
		return base.NewBlobKey(append([]byte(nil), buf...))
	default:
		return base.Key{}
	}
}

// fixedKeyWidth returns the encoded width for fixed-width key types, or 0
// for variable-width (string/blob) keys that need a length-prefixed key
// area instead.
func fixedKeyWidth(t base.KeyType) int {
	switch t {
	case base.KeyTypeUint32:
		return 4
	case base.KeyTypeDouble:
		return 8
	default:
		return 0
	}
}
