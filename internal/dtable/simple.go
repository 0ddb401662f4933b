// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package dtable

import (
	"os"
	"sort"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/txfile"
)

// simpleIndexEntry is one row of a simpledtable's key index: the key's
// location in the key area, its tag, and (if valid) its location in the
// value area.
type simpleIndexEntry struct {
	keyOff, keyLen     uint32
	tag                base.EntryTag
	valueOff, valueLen uint32
}

const simpleIndexEntryLen = 4 + 4 + 1 + 4 + 4

// SimpleDTable is the generic sorted-run file variant: header, a key
// index, and a value area, as described in spec.md §3/§4.1. Grounded on
// the teacher's footer + block.Handle design in
// other_examples/.../sstable/table.go (a checksummed trailer per block
// rather than one whole-file checksum) and on the original source's
// dtable.h generic layout.
type SimpleDTable struct {
	h       header
	cmp     base.Comparator
	index   []simpleIndexEntry
	keyArea []byte
	values  []byte // decompressed value area
}

// CreateSimple writes a new immutable simpledtable file at path for the
// given source/shadow per the create(source, shadow) contract (spec.md
// §4.1, see mergeSourceShadow). dropTombstones corresponds to combine's
// "shadow is empty" optimization (spec.md §4.4): when true, source's own
// tombstones are omitted from the output because there is no older run
// left to unmask.
func CreateSimple(
	path string,
	keyType base.KeyType,
	cmp base.Comparator,
	source Iterator,
	shadow Iterator,
	hasShadow bool,
	dropTombstones bool,
	compression Compression,
) error {
	entries, err := mergeSourceShadow(cmp, source, shadow, hasShadow)
	if err != nil {
		return err
	}
	if dropTombstones {
		entries = filterTombstones(entries)
	}

	var keyArea []byte
	var valueArea []byte
	index := make([]simpleIndexEntry, 0, len(entries))

	for _, e := range entries {
		kb := encodeKeyBytes(e.key)
		ie := simpleIndexEntry{keyOff: uint32(len(keyArea)), keyLen: uint32(len(kb))}
		keyArea = append(keyArea, kb...)

		if e.value.IsTombstone() {
			ie.tag = base.TagTombstone
		} else {
			ie.tag = base.TagValid
			ie.valueOff = uint32(len(valueArea))
			ie.valueLen = uint32(len(e.value.Bytes))
			valueArea = append(valueArea, e.value.Bytes...)
		}
		index = append(index, ie)
	}

	compressedValues, err := compressValueArea(compression, valueArea)
	if err != nil {
		return err
	}

	var comparatorName string
	if keyType == base.KeyTypeBlob && cmp != nil {
		comparatorName = cmp.Name()
	}

	h := header{
		magic:       magicSimple,
		version:     formatVersion,
		keyType:     keyType,
		compression: compression,
		comparator:  comparatorName,
		keyCount:    uint64(len(index)),
		valueSize:   uint64(len(valueArea)),
	}

	indexBytes := encodeSimpleIndex(index)

	var lens [24]byte
	putU64(lens[0:8], uint64(len(keyArea)))
	putU64(lens[8:16], uint64(len(indexBytes)))
	putU64(lens[16:24], uint64(len(compressedValues)))

	var buf []byte
	buf = append(buf, encodeHeader(h)...)
	buf = append(buf, lens[:]...)
	buf = append(buf, checksumBlock(keyArea)...)
	buf = append(buf, checksumBlock(indexBytes)...)
	buf = append(buf, checksumBlock(compressedValues)...)

	dir, name := splitPath(path)
	tx := txfile.Begin(dir)
	tx.Write(name, buf)
	return tx.Commit()
}

func encodeSimpleIndex(index []simpleIndexEntry) []byte {
	buf := make([]byte, 0, len(index)*simpleIndexEntryLen)
	for _, ie := range index {
		var tmp [simpleIndexEntryLen]byte
		putU32(tmp[0:4], ie.keyOff)
		putU32(tmp[4:8], ie.keyLen)
		tmp[8] = byte(ie.tag)
		putU32(tmp[9:13], ie.valueOff)
		putU32(tmp[13:17], ie.valueLen)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func decodeSimpleIndex(buf []byte, n uint64) ([]simpleIndexEntry, error) {
	if uint64(len(buf)) != n*simpleIndexEntryLen {
		return nil, base.CorruptionErrorf("anvildb/dtable: key index size mismatch")
	}
	index := make([]simpleIndexEntry, n)
	for i := range index {
		off := i * simpleIndexEntryLen
		e := simpleIndexEntry{
			keyOff:   getU32(buf[off : off+4]),
			keyLen:   getU32(buf[off+4 : off+8]),
			tag:      base.EntryTag(buf[off+8]),
			valueOff: getU32(buf[off+9 : off+13]),
			valueLen: getU32(buf[off+13 : off+17]),
		}
		index[i] = e
	}
	return index, nil
}

// OpenSimple opens an existing simpledtable file. wantCmp is the
// comparator the caller expects for blob-typed keys; if the persisted
// comparator name differs, Open fails with InvalidArgument per spec.md
// §9's custom-comparator-identity design note.
func OpenSimple(path string, wantCmp base.Comparator) (*SimpleDTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, base.Wrap(base.KindIoError, err, "anvildb/dtable: reading %s", path)
	}
	h, n, err := decodeHeader(data, magicSimple)
	if err != nil {
		return nil, err
	}
	buf := data[n:]

	if h.keyType == base.KeyTypeBlob && wantCmp != nil && h.comparator != "" && h.comparator != wantCmp.Name() {
		return nil, base.Errorf(base.KindInvalidArgument,
			"anvildb/dtable: table comparator %q does not match requested comparator %q", h.comparator, wantCmp.Name())
	}

	// Key area length is unknown up front; each of the three trailing
	// blocks is self-delimited by scanning backward isn't possible
	// without stored lengths, so CreateSimple's layout keeps explicit
	// block lengths right after the header.
	keyAreaLen, idxLen, valLen, rest, err := decodeBlockLens(buf)
	if err != nil {
		return nil, err
	}
	buf = rest

	if len(buf) < int(keyAreaLen)+8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: truncated key area")
	}
	keyBlock, err := verifyChecksum(buf[:keyAreaLen+8])
	if err != nil {
		return nil, err
	}
	buf = buf[keyAreaLen+8:]

	if len(buf) < int(idxLen)+8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: truncated key index")
	}
	idxBlock, err := verifyChecksum(buf[:idxLen+8])
	if err != nil {
		return nil, err
	}
	buf = buf[idxLen+8:]

	if len(buf) < int(valLen)+8 {
		return nil, base.CorruptionErrorf("anvildb/dtable: truncated value area")
	}
	valBlock, err := verifyChecksum(buf[:valLen+8])
	if err != nil {
		return nil, err
	}

	index, err := decodeSimpleIndex(idxBlock, h.keyCount)
	if err != nil {
		return nil, err
	}
	values, err := decompressValueArea(h.compression, valBlock, int(h.valueSize))
	if err != nil {
		return nil, err
	}

	var cmp base.Comparator
	if h.keyType == base.KeyTypeBlob {
		if wantCmp != nil {
			cmp = wantCmp
		} else {
			cmp = base.DefaultBlobComparator{}
		}
	}

	return &SimpleDTable{h: h, cmp: cmp, index: index, keyArea: keyBlock, values: values}, nil
}

// decodeBlockLens reads the three-block length table CreateSimple writes
// right after the header, so the key area/key index/value area blocks
// (each wrapped in a checksumBlock trailer) can be sliced out without
// scanning.
func decodeBlockLens(buf []byte) (keyLen, idxLen, valLen uint64, rest []byte, err error) {
	if len(buf) < 24 {
		return 0, 0, 0, nil, base.CorruptionErrorf("anvildb/dtable: truncated block length table")
	}
	keyLen = getU64(buf[0:8])
	idxLen = getU64(buf[8:16])
	valLen = getU64(buf[16:24])
	return keyLen, idxLen, valLen, buf[24:], nil
}

func (t *SimpleDTable) keyAt(i int) base.Key {
	ie := t.index[i]
	return decodeKeyBytes(t.h.keyType, t.keyArea[ie.keyOff:ie.keyOff+ie.keyLen])
}

func (t *SimpleDTable) valueAt(i int) base.Value {
	ie := t.index[i]
	switch ie.tag {
	case base.TagTombstone:
		return base.Tombstone()
	case base.TagValid:
		return base.Value{Exists: true, Bytes: t.values[ie.valueOff : ie.valueOff+ie.valueLen]}
	default:
		return base.NotFound()
	}
}

func (t *SimpleDTable) find(k base.Key) (int, bool) {
	n := len(t.index)
	i := sort.Search(n, func(i int) bool {
		return base.Compare(t.cmp, t.keyAt(i), k) >= 0
	})
	if i < n && base.Compare(t.cmp, t.keyAt(i), k) == 0 {
		return i, true
	}
	return i, false
}

// KeyType implements dtable.DTable.
func (t *SimpleDTable) KeyType() base.KeyType { return t.h.keyType }

// Writable implements dtable.DTable: a sorted-run file is immutable once
// created, per spec.md invariant 4.
func (t *SimpleDTable) Writable() bool { return false }

// Insert implements dtable.DTable.
func (t *SimpleDTable) Insert(base.Key, base.Value, bool) error {
	return base.Errorf(base.KindUnsupported, "anvildb/dtable: simpledtable is read-only")
}

// Remove implements dtable.DTable.
func (t *SimpleDTable) Remove(base.Key) error {
	return base.Errorf(base.KindUnsupported, "anvildb/dtable: simpledtable is read-only")
}

// SetBlobCmp implements dtable.DTable.
func (t *SimpleDTable) SetBlobCmp(cmp base.Comparator) error {
	if t.h.keyType != base.KeyTypeBlob {
		return nil
	}
	if t.h.comparator != "" && cmp.Name() != t.h.comparator {
		return base.Errorf(base.KindInvalidArgument,
			"anvildb/dtable: comparator %q does not match table comparator %q", cmp.Name(), t.h.comparator)
	}
	t.cmp = cmp
	return nil
}

// Present implements dtable.DTable.
func (t *SimpleDTable) Present(k base.Key) (base.Metablob, bool, error) {
	if err := base.ValidateType(k, t.h.keyType); err != nil {
		return base.Metablob{}, false, err
	}
	i, ok := t.find(k)
	if !ok {
		return base.Metablob{}, false, nil
	}
	v := t.valueAt(i)
	return base.Metablob{Exists: v.Exists, Size: len(v.Bytes)}, true, nil
}

// Lookup implements dtable.DTable.
func (t *SimpleDTable) Lookup(k base.Key) (base.Value, error) {
	if err := base.ValidateType(k, t.h.keyType); err != nil {
		return base.Value{}, err
	}
	i, ok := t.find(k)
	if !ok {
		return base.NotFound(), nil
	}
	return t.valueAt(i), nil
}

// Size implements dtable.DTable.
func (t *SimpleDTable) Size() int { return len(t.index) }

// Close implements dtable.DTable.
func (t *SimpleDTable) Close() error { return nil }

// Iterator implements dtable.DTable.
func (t *SimpleDTable) Iterator() (Iterator, error) {
	return NewIterator(&simpleIter{t: t, pos: -1}), nil
}

type simpleIter struct {
	t   *SimpleDTable
	pos int
}

func (it *simpleIter) First() bool {
	if len(it.t.index) == 0 {
		it.pos = -1
		return false
	}
	it.pos = 0
	return true
}

func (it *simpleIter) Last() bool {
	it.pos = len(it.t.index) - 1
	return it.pos >= 0
}

func (it *simpleIter) Next() bool {
	if it.pos+1 >= len(it.t.index) {
		it.pos = len(it.t.index)
		return false
	}
	it.pos++
	return true
}

func (it *simpleIter) Prev() bool {
	if it.pos <= 0 {
		it.pos = -1
		return false
	}
	it.pos--
	return true
}

func (it *simpleIter) SeekGE(k base.Key) (bool, bool) {
	i, exact := it.t.find(k)
	it.pos = i
	return i < len(it.t.index), exact
}

func (it *simpleIter) Valid() bool { return it.pos >= 0 && it.pos < len(it.t.index) }

func (it *simpleIter) Key() base.Key { return it.t.keyAt(it.pos) }

func (it *simpleIter) Value() (base.Value, error) { return it.t.valueAt(it.pos), nil }

func (it *simpleIter) Meta() base.Metablob {
	v := it.t.valueAt(it.pos)
	return base.Metablob{Exists: v.Exists, Size: len(v.Bytes)}
}

func (it *simpleIter) Index() int { return it.pos }

func (it *simpleIter) Close() error { return nil }
