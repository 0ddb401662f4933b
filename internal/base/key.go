// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "bytes"

// KeyType identifies which of the four representations a Key holds. Mixing
// key types within a single dtable is forbidden; every table is created
// with exactly one KeyType and refuses to open against a mismatched one.
// Grounded on the original source's dtype::ctype (dtable.h).
type KeyType uint8

const (
	// KeyTypeUint32 is an unsigned 32-bit integer key.
	KeyTypeUint32 KeyType = iota + 1
	// KeyTypeDouble is an IEEE-754 double key.
	KeyTypeDouble
	// KeyTypeString is a UTF-8 string key.
	KeyTypeString
	// KeyTypeBlob is an opaque byte-blob key, optionally ordered by a
	// named custom comparator instead of lexicographic order.
	KeyTypeBlob
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeUint32:
		return "uint32"
	case KeyTypeDouble:
		return "double"
	case KeyTypeString:
		return "string"
	case KeyTypeBlob:
		return "blob"
	default:
		return "invalid"
	}
}

// Key is a tagged value in one of the four supported total orders. The
// zero Key is invalid; always construct one of the NewXKey helpers.
type Key struct {
	typ    KeyType
	u32    uint32
	dbl    float64
	str    string
	blob   []byte
}

// NewUint32Key builds a uint32-typed Key.
func NewUint32Key(v uint32) Key { return Key{typ: KeyTypeUint32, u32: v} }

// NewDoubleKey builds a double-typed Key.
func NewDoubleKey(v float64) Key { return Key{typ: KeyTypeDouble, dbl: v} }

// NewStringKey builds a string-typed Key.
func NewStringKey(v string) Key { return Key{typ: KeyTypeString, str: v} }

// NewBlobKey builds a blob-typed Key. The byte slice is retained, not
// copied; callers must not mutate it afterward.
func NewBlobKey(v []byte) Key { return Key{typ: KeyTypeBlob, blob: v} }

// Type returns the key's type tag.
func (k Key) Type() KeyType { return k.typ }

// Uint32 returns the key's value, valid only when Type() == KeyTypeUint32.
func (k Key) Uint32() uint32 { return k.u32 }

// Double returns the key's value, valid only when Type() == KeyTypeDouble.
func (k Key) Double() float64 { return k.dbl }

// String returns the key's value, valid only when Type() == KeyTypeString.
func (k Key) String() string { return k.str }

// Blob returns the key's value, valid only when Type() == KeyTypeBlob.
func (k Key) Blob() []byte { return k.blob }

// Comparator orders two blob-typed keys. A dtable may install a named
// custom comparator for blob keys; the name is persisted so a reopened
// table can verify the comparator matches (see DefaultBlobComparator for
// the order used when none is installed).
type Comparator interface {
	// Name identifies the comparator for persistence and mismatch
	// detection across reopen.
	Name() string
	// Compare returns <0, 0, >0 as a < b, a == b, a > b.
	Compare(a, b []byte) int
}

// DefaultBlobComparator orders blob keys by bytes.Compare, the natural
// order for opaque blobs absent an application-specific comparator.
type DefaultBlobComparator struct{}

// Name implements Comparator.
func (DefaultBlobComparator) Name() string { return "bytewise" }

// Compare implements Comparator.
func (DefaultBlobComparator) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// Compare orders two keys of the same type, returning <0, 0, >0. Blob keys
// compared with a nil cmp use DefaultBlobComparator. It panics if a and b
// have different types — callers at the API boundary (dtable Open, overlay SetBlobCmp)
// must validate key types before this is ever reached so the panic never
// surfaces through a public operation.
func Compare(cmp Comparator, a, b Key) int {
	if a.typ != b.typ {
		panic("base: comparing keys of different types")
	}
	switch a.typ {
	case KeyTypeUint32:
		switch {
		case a.u32 < b.u32:
			return -1
		case a.u32 > b.u32:
			return 1
		default:
			return 0
		}
	case KeyTypeDouble:
		switch {
		case a.dbl < b.dbl:
			return -1
		case a.dbl > b.dbl:
			return 1
		default:
			return 0
		}
	case KeyTypeString:
		return compareStrings(a.str, b.str)
	case KeyTypeBlob:
		if cmp == nil {
			cmp = DefaultBlobComparator{}
		}
		return cmp.Compare(a.blob, b.blob)
	default:
		panic("base: comparing invalid keys")
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ValidateType returns an InvalidArgument error if k is not of type want,
// the check every public operation performs before it ever reaches
// Compare, so mixed-type tables fail with a discriminated error rather
// than a panic.
func ValidateType(k Key, want KeyType) error {
	if k.Type() != want {
		return Errorf(KindInvalidArgument, "anvil: key type %s does not match table key type %s", k.Type(), want)
	}
	return nil
}
