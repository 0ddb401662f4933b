// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

// Value is a byte blob with a distinguished "non-existent" state. Values
// never contain their own key. The zero Value is the tombstone/hole-free
// "nothing here" representation used internally by iterators that have not
// yet decided what a slot holds.
type Value struct {
	Bytes  []byte
	Exists bool
}

// Tombstone is the "explicitly removed" value: Exists is true (there is an
// entry) but Bytes is nil, distinguishing a delete marker from a hole
// (absence of any entry, see Metablob).
func Tombstone() Value { return Value{Exists: true, Bytes: nil} }

// IsTombstone reports whether v represents an explicit removal rather than
// a real stored value.
func (v Value) IsTombstone() bool { return v.Exists && v.Bytes == nil }

// NotFound is the value returned for a key with no entry at any level.
func NotFound() Value { return Value{} }

// Metablob is a light descriptor of a value carrying only existence and
// size, so an iterator can yield it cheaply and let the caller fetch the
// full blob only if it needs one.
type Metablob struct {
	Exists bool
	Size   int
}

// EntryTag classifies a slot in a sorted-run file: it has bytes (Valid),
// it is an explicit tombstone, or it is simply absent (Hole, dense-array
// layout only).
type EntryTag uint8

const (
	// TagHole marks an absent slot (dense-array layout only); distinct
	// from TagTombstone.
	TagHole EntryTag = iota
	// TagValid marks a slot holding real value bytes.
	TagValid
	// TagTombstone marks a slot explicitly recording non-existence.
	TagTombstone
)
