// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base holds the primitives shared by every layer of the dtable
// stack: the tagged key type, the value/metablob representations, the
// discriminated error kinds, and the logger and config types the rest of
// the module builds on.
package base

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind discriminates the error categories the core reports, per the error
// handling design: InvalidArgument, NotFound, IoError, Corrupt,
// AlreadyExists, Unsupported, Conflict.
type Kind int

const (
	// KindInvalidArgument marks bad config, wrong key type, or mixed key
	// types within one table.
	KindInvalidArgument Kind = iota
	// KindNotFound marks a missing file, or a missing key, or a journal
	// listener id absent from the registry during playback.
	KindNotFound
	// KindIoError marks a short read/write or unexpected EOF.
	KindIoError
	// KindCorrupt marks a bad magic, version mismatch, or inconsistent
	// header.
	KindCorrupt
	// KindAlreadyExists marks a duplicate column name at create, or
	// re-registering a listener id that is already live.
	KindAlreadyExists
	// KindUnsupported marks a write attempted on a read-only dtable.
	KindUnsupported
	// KindConflict marks an abortable transaction that is no longer
	// consistent with the committed state.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotFound:
		return "not found"
	case KindIoError:
		return "io error"
	case KindCorrupt:
		return "corrupt"
	case KindAlreadyExists:
		return "already exists"
	case KindUnsupported:
		return "unsupported"
	case KindConflict:
		return "conflict"
	default:
		return "unknown error kind"
	}
}

// kindError is the leaf error each Kind is marked with, so callers can
// errors.Is against base.ErrNotFound etc. while the wrapped chain above it
// keeps the full context, matching the way the teacher marks sentinel
// errors under github.com/cockroachdb/errors.
type kindError struct {
	kind Kind
}

func (e *kindError) Error() string { return e.kind.String() }

var (
	// ErrInvalidArgument is the sentinel for KindInvalidArgument.
	ErrInvalidArgument error = &kindError{KindInvalidArgument}
	// ErrNotFound is the sentinel for KindNotFound.
	ErrNotFound error = &kindError{KindNotFound}
	// ErrIoError is the sentinel for KindIoError.
	ErrIoError error = &kindError{KindIoError}
	// ErrCorrupt is the sentinel for KindCorrupt.
	ErrCorrupt error = &kindError{KindCorrupt}
	// ErrAlreadyExists is the sentinel for KindAlreadyExists.
	ErrAlreadyExists error = &kindError{KindAlreadyExists}
	// ErrUnsupported is the sentinel for KindUnsupported.
	ErrUnsupported error = &kindError{KindUnsupported}
	// ErrConflict is the sentinel for KindConflict.
	ErrConflict error = &kindError{KindConflict}
)

func sentinelFor(kind Kind) error {
	switch kind {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindNotFound:
		return ErrNotFound
	case KindIoError:
		return ErrIoError
	case KindCorrupt:
		return ErrCorrupt
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindUnsupported:
		return ErrUnsupported
	case KindConflict:
		return ErrConflict
	default:
		return ErrInvalidArgument
	}
}

// Errorf builds an error of the given kind, markable with errors.Is against
// the matching sentinel, wrapping a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) error {
	err := errors.Newf(format, args...)
	return errors.Mark(err, sentinelFor(kind))
}

// Wrap wraps err with additional context and marks it with kind so
// errors.Is(result, base.ErrCorrupt) etc. still succeeds.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, format, args...)
	return errors.Mark(wrapped, sentinelFor(kind))
}

// CorruptionErrorf is the single entry point for KindCorrupt errors raised
// while parsing on-disk structures: bad magic, version mismatch, short
// reads of a header. Grounded on the teacher's base.CorruptionErrorf calls
// guarding sstable footer/key-index parsing.
func CorruptionErrorf(format string, args ...interface{}) error {
	return Errorf(KindCorrupt, format, args...)
}

// Is reports whether err is marked with kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinelFor(kind))
}

// Safe wraps a value that is safe to report verbatim in an error message
// (key types, file/run numbers) — a thin pass-through to errors.Safe,
// named at this layer so call sites don't need to import
// cockroachdb/errors directly just for this.
func Safe(v interface{}) interface{} {
	return errors.Safe(fmt.Sprint(v))
}
