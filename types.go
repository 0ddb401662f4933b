// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package anvil

import (
	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/ctable"
)

// Key is a tagged value in one of four supported total orders: uint32,
// double, string, or blob. The zero Key is invalid; use one of the
// NewXKey constructors.
type Key = base.Key

// KeyType identifies which representation a Key holds.
type KeyType = base.KeyType

const (
	KeyTypeUint32 = base.KeyTypeUint32
	KeyTypeDouble = base.KeyTypeDouble
	KeyTypeString = base.KeyTypeString
	KeyTypeBlob   = base.KeyTypeBlob
)

// NewUint32Key, NewDoubleKey, NewStringKey, and NewBlobKey build Keys of
// the matching type.
var (
	NewUint32Key = base.NewUint32Key
	NewDoubleKey = base.NewDoubleKey
	NewStringKey = base.NewStringKey
	NewBlobKey   = base.NewBlobKey
)

// Value is a byte blob with a distinguished "non-existent" state.
type Value = base.Value

// Tombstone is the explicit "removed" value.
func Tombstone() Value { return base.Tombstone() }

// NotFound is the value reported for a key with no entry at any level.
func NotFound() Value { return base.NotFound() }

// Metablob is a cheap existence-plus-size descriptor of a value, the
// kind an iterator yields without fetching the full blob.
type Metablob = base.Metablob

// Comparator orders two blob-typed keys under a name persisted alongside
// the data that uses it, so a reopened table can detect a mismatch.
type Comparator = base.Comparator

// DefaultBlobComparator orders blob keys lexicographically.
type DefaultBlobComparator = base.DefaultBlobComparator

// Record is one (row, column, value) triple yielded by a ColumnTable's
// iterators.
type Record = ctable.RowEntry

// Logger decouples the store from a concrete logging backend.
type Logger = base.Logger

// NewStdLogger returns a Logger over the standard library's log package.
func NewStdLogger(tracing bool) Logger { return base.NewStdLogger(tracing) }

// NoopLogger discards every log message.
var NoopLogger = base.NoopLogger

// Params is the store's configuration tree: a nested map of scalar
// leaves and sub-maps, read through String/Int/Bool/Sub/Has.
type Params = base.Params

// ErrorKind discriminates the error categories the core reports.
type ErrorKind = base.Kind

const (
	ErrInvalidArgument = base.KindInvalidArgument
	ErrKindNotFound    = base.KindNotFound
	ErrIoError         = base.KindIoError
	ErrCorrupt         = base.KindCorrupt
	ErrAlreadyExists   = base.KindAlreadyExists
	ErrUnsupported     = base.KindUnsupported
	ErrConflict        = base.KindConflict
)

// IsErrorKind reports whether err is marked with the given ErrorKind, the
// way a caller checks "was this key missing" vs. "was this corrupt" etc.
func IsErrorKind(err error, kind ErrorKind) bool { return base.Is(err, kind) }
