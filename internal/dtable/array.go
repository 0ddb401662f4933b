// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"os"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/txfile"
)

// fixedSlotLenPrefix is the per-slot length prefix used in fixed-width
// mode, so a slot narrower than valueSize-4 doesn't need padding
// disambiguation beyond "how many of these bytes are real".
const fixedSlotLenPrefix = 4

// DefaultArrayValueCap is the value-length threshold below which
// CreateArray chooses the fixed-width value layout instead of an offset
// table, per spec.md §4.1: "The value-area width is the max value length
// (padded) when all values are ≤ some small bound; otherwise an offset
// table is kept."
const DefaultArrayValueCap = 64

// ArrayDTable is the dense-array sorted-run variant for fixed-width
// unsigned-integer keys over a contiguous range, giving O(1) positional
// lookup. Grounded on original_source/array_dtable.h.
type ArrayDTable struct {
	h      header
	tags   []base.EntryTag
	fixed  bool
	width  uint32 // fixed-width mode: bytes per slot including length prefix
	values []byte // fixed mode: per-slot payload area; offset mode: concatenated value bytes
	offs   []uint32
	lens   []uint32
}

// ShouldUseArray reports whether a key range is dense enough to prefer the
// array variant over the generic one, per spec.md §4.1: "chosen when keys
// are small unsigned integers over a range whose density exceeds a
// threshold." minKey/maxKey are inclusive; count is the number of live
// (non-hole) entries.
func ShouldUseArray(minKey, maxKey uint32, count int) bool {
	if maxKey < minKey {
		return false
	}
	span := uint64(maxKey-minKey) + 1
	if span == 0 || span > 1<<24 {
		return false // guard against absurd ranges blowing up the tag array
	}
	const densityThreshold = 0.5
	return float64(count)/float64(span) >= densityThreshold
}

// CreateArray writes a new immutable arraydtable file at path. source and
// shadow follow the same contract as CreateSimple (spec.md §4.1); every
// key produced must be a uint32 in [minKey, minKey+arraySize).
func CreateArray(
	path string,
	minKey uint32,
	arraySize uint32,
	source Iterator,
	shadow Iterator,
	hasShadow bool,
	dropTombstones bool,
	compression Compression,
	valueCap int,
) error {
	entries, err := mergeSourceShadow(nil, source, shadow, hasShadow)
	if err != nil {
		return err
	}
	if dropTombstones {
		entries = filterTombstones(entries)
	}

	tags := make([]base.EntryTag, arraySize)
	valuesBySlot := make([][]byte, arraySize)
	maxLen := 0
	for _, e := range entries {
		slot := e.key.Uint32() - minKey
		if slot >= arraySize {
			return base.Errorf(base.KindInvalidArgument, "anvildb/dtable: key %d out of array range", base.Safe(e.key.Uint32()))
		}
		if e.value.IsTombstone() {
			tags[slot] = base.TagTombstone
		} else {
			tags[slot] = base.TagValid
			valuesBySlot[slot] = e.value.Bytes
			if len(e.value.Bytes) > maxLen {
				maxLen = len(e.value.Bytes)
			}
		}
	}

	fixed := maxLen+fixedSlotLenPrefix <= valueCap

	var valueBlock []byte
	var offs, lens []uint32
	var width uint32

	if fixed {
		width = uint32(maxLen + fixedSlotLenPrefix)
		valueBlock = make([]byte, int(width)*int(arraySize))
		for slot, v := range valuesBySlot {
			if tags[slot] != base.TagValid {
				continue
			}
			off := slot * int(width)
			putU32(valueBlock[off:off+4], uint32(len(v)))
			copy(valueBlock[off+4:off+4+len(v)], v)
		}
	} else {
		offs = make([]uint32, arraySize)
		lens = make([]uint32, arraySize)
		var cat []byte
		for slot, v := range valuesBySlot {
			if tags[slot] != base.TagValid {
				continue
			}
			offs[slot] = uint32(len(cat))
			lens[slot] = uint32(len(v))
			cat = append(cat, v...)
		}
		valueBlock = cat
	}

	compressedValues, err := compressValueArea(compression, valueBlock)
	if err != nil {
		return err
	}

	h := header{
		magic:       magicArray,
		version:     formatVersion,
		keyType:     base.KeyTypeUint32,
		compression: compression,
		keyCount:    uint64(len(entries)),
		minKey:      uint64(minKey),
		arraySize:   uint64(arraySize),
	}
	if fixed {
		h.valueSize = uint64(width)
	}

	tagBytes := make([]byte, arraySize)
	for i, t := range tags {
		tagBytes[i] = byte(t)
	}

	var offsLensBytes []byte
	if !fixed {
		offsLensBytes = make([]byte, 0, 8*arraySize)
		for i := range offs {
			var tmp [8]byte
			putU32(tmp[0:4], offs[i])
			putU32(tmp[4:8], lens[i])
			offsLensBytes = append(offsLensBytes, tmp[:]...)
		}
	}

	var lensTable [24]byte
	putU64(lensTable[0:8], uint64(len(tagBytes)))
	putU64(lensTable[8:16], uint64(len(offsLensBytes)))
	putU64(lensTable[16:24], uint64(len(compressedValues)))

	var buf []byte
	buf = append(buf, encodeHeader(h)...)
	buf = append(buf, lensTable[:]...)
	buf = append(buf, checksumBlock(tagBytes)...)
	buf = append(buf, checksumBlock(offsLensBytes)...)
	buf = append(buf, checksumBlock(compressedValues)...)

	dir, name := splitPath(path)
	tx := txfile.Begin(dir)
	tx.Write(name, buf)
	return tx.Commit()
}

// OpenArray opens an existing arraydtable file.
func OpenArray(path string) (*ArrayDTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, base.Wrap(base.KindIoError, err, "anvildb/dtable: reading %s", path)
	}
	h, n, err := decodeHeader(data, magicArray)
	if err != nil {
		return nil, err
	}
	buf := data[n:]

	tagLen, offsLen, valLen, rest, err := decodeBlockLens(buf)
	if err != nil {
		return nil, err
	}
	buf = rest

	if len(buf) < int(tagLen)+8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: truncated tag array")
	}
	tagBytes, err := verifyChecksum(buf[:tagLen+8])
	if err != nil {
		return nil, err
	}
	buf = buf[tagLen+8:]

	if len(buf) < int(offsLen)+8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: truncated offset table")
	}
	offsLensBytes, err := verifyChecksum(buf[:offsLen+8])
	if err != nil {
		return nil, err
	}
	buf = buf[offsLen+8:]

	if len(buf) < int(valLen)+8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: truncated value area")
	}
	valBlock, err := verifyChecksum(buf[:valLen+8])
	if err != nil {
		return nil, err
	}

	fixed := h.valueSize > 0
	var values []byte
	var offs, lens []uint32

	if fixed {
		values, err = decompressValueArea(h.compression, valBlock, int(h.valueSize)*int(h.arraySize))
		if err != nil {
			return nil, err
		}
	} else {
		if uint64(len(offsLensBytes)) != h.arraySize*8 {
			return nil, base.CorruptionErrorf("anvildb/dtable: offset table size mismatch")
		}
		offs = make([]uint32, h.arraySize)
		lens = make([]uint32, h.arraySize)
		for i := range offs {
			off := i * 8
			offs[i] = getU32(offsLensBytes[off : off+4])
			lens[i] = getU32(offsLensBytes[off+4 : off+8])
		}
		values, err = decompressValueArea(h.compression, valBlock, len(valBlock))
		if err != nil {
			return nil, err
		}
	}

	tags := make([]base.EntryTag, len(tagBytes))
	for i, b := range tagBytes {
		tags[i] = base.EntryTag(b)
	}

	return &ArrayDTable{
		h: h, tags: tags, fixed: fixed, width: uint32(h.valueSize),
		values: values, offs: offs, lens: lens,
	}, nil
}

func (t *ArrayDTable) valueAtSlot(slot int) base.Value {
	switch t.tags[slot] {
	case base.TagTombstone:
		return base.Tombstone()
	case base.TagValid:
		if t.fixed {
			off := slot * int(t.width)
			n := getU32(t.values[off : off+4])
			return base.Value{Exists: true, Bytes: t.values[off+4 : off+4+int(n)]}
		}
		off, n := t.offs[slot], t.lens[slot]
		return base.Value{Exists: true, Bytes: t.values[off : off+n]}
	default:
		return base.NotFound()
	}
}

func (t *ArrayDTable) slotForKey(k base.Key) (int, bool) {
	if k.Type() != base.KeyTypeUint32 {
		return 0, false
	}
	v := k.Uint32()
	if v < uint32(t.h.minKey) {
		return 0, false
	}
	slot := v - uint32(t.h.minKey)
	if slot >= uint32(len(t.tags)) {
		return 0, false
	}
	return int(slot), true
}

// KeyType implements dtable.DTable.
func (t *ArrayDTable) KeyType() base.KeyType { return base.KeyTypeUint32 }

// Writable implements dtable.DTable.
func (t *ArrayDTable) Writable() bool { return false }

// Insert implements dtable.DTable.
func (t *ArrayDTable) Insert(base.Key, base.Value, bool) error {
	return base.Errorf(base.KindUnsupported, "anvildb/dtable: arraydtable is read-only")
}

// Remove implements dtable.DTable.
func (t *ArrayDTable) Remove(base.Key) error {
	return base.Errorf(base.KindUnsupported, "anvildb/dtable: arraydtable is read-only")
}

// SetBlobCmp implements dtable.DTable; arraydtable keys are always uint32,
// so there is never a blob comparator to install.
func (t *ArrayDTable) SetBlobCmp(base.Comparator) error { return nil }

// Present implements dtable.DTable: O(1) via direct indexing.
func (t *ArrayDTable) Present(k base.Key) (base.Metablob, bool, error) {
	if err := base.ValidateType(k, base.KeyTypeUint32); err != nil {
		return base.Metablob{}, false, err
	}
	slot, ok := t.slotForKey(k)
	if !ok || t.tags[slot] == base.TagHole {
		return base.Metablob{}, false, nil
	}
	v := t.valueAtSlot(slot)
	return base.Metablob{Exists: v.Exists, Size: len(v.Bytes)}, true, nil
}

// Lookup implements dtable.DTable: O(1) via direct indexing.
func (t *ArrayDTable) Lookup(k base.Key) (base.Value, error) {
	if err := base.ValidateType(k, base.KeyTypeUint32); err != nil {
		return base.Value{}, err
	}
	slot, ok := t.slotForKey(k)
	if !ok || t.tags[slot] == base.TagHole {
		return base.NotFound(), nil
	}
	return t.valueAtSlot(slot), nil
}

// Size implements dtable.DTable: the count of non-hole slots.
func (t *ArrayDTable) Size() int { return int(t.h.keyCount) }

// Close implements dtable.DTable.
func (t *ArrayDTable) Close() error { return nil }

// Iterator implements dtable.DTable, skipping hole slots.
func (t *ArrayDTable) Iterator() (Iterator, error) {
	return NewIterator(&arrayIter{t: t, pos: -1}), nil
}

type arrayIter struct {
	t   *ArrayDTable
	pos int
}

func (it *arrayIter) First() bool {
	it.pos = -1
	return it.Next()
}

func (it *arrayIter) Last() bool {
	it.pos = len(it.t.tags)
	return it.Prev()
}

func (it *arrayIter) Next() bool {
	for it.pos++; it.pos < len(it.t.tags); it.pos++ {
		if it.t.tags[it.pos] != base.TagHole {
			return true
		}
	}
	return false
}

func (it *arrayIter) Prev() bool {
	for it.pos--; it.pos >= 0; it.pos-- {
		if it.t.tags[it.pos] != base.TagHole {
			return true
		}
	}
	return false
}

func (it *arrayIter) SeekGE(k base.Key) (bool, bool) {
	slot, ok := it.t.slotForKey(k)
	if !ok {
		// k outside the table's range or of the wrong type. Below range:
		// position before the start so a forward scan finds the smallest
		// present key. Otherwise: position past the end and report false.
		if k.Type() == base.KeyTypeUint32 && k.Uint32() < uint32(it.t.h.minKey) {
			it.pos = -1
			return it.Next(), false
		}
		it.pos = len(it.t.tags)
		return false, false
	}
	it.pos = slot - 1
	valid := it.Next()
	exact := valid && it.pos == slot && it.t.tags[slot] != base.TagHole
	return valid, exact
}

func (it *arrayIter) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.t.tags) && it.t.tags[it.pos] != base.TagHole
}

func (it *arrayIter) Key() base.Key {
	return base.NewUint32Key(uint32(it.t.h.minKey) + uint32(it.pos))
}

func (it *arrayIter) Value() (base.Value, error) { return it.t.valueAtSlot(it.pos), nil }

func (it *arrayIter) Meta() base.Metablob {
	v := it.t.valueAtSlot(it.pos)
	return base.Metablob{Exists: v.Exists, Size: len(v.Bytes)}
}

func (it *arrayIter) Index() int { return it.pos }

func (it *arrayIter) Close() error { return nil }
