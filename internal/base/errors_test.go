// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorfIsMarkedWithKind(t *testing.T) {
	err := Errorf(KindNotFound, "key %d missing", 7)
	require.Error(t, err)
	require.True(t, Is(err, KindNotFound))
	require.False(t, Is(err, KindCorrupt))
	require.Contains(t, err.Error(), "key 7 missing")
}

func TestWrapPreservesKindAndNilIsNil(t *testing.T) {
	require.NoError(t, Wrap(KindIoError, nil, "unused"))

	cause := Errorf(KindInvalidArgument, "bad input")
	wrapped := Wrap(KindIoError, cause, "reading header")
	require.True(t, Is(wrapped, KindIoError))
	require.Contains(t, wrapped.Error(), "reading header")
}

func TestCorruptionErrorfMarksKindCorrupt(t *testing.T) {
	err := CorruptionErrorf("bad magic %x", 0xdead)
	require.True(t, Is(err, KindCorrupt))
}

func TestKindStringCoversEveryKind(t *testing.T) {
	kinds := []Kind{
		KindInvalidArgument, KindNotFound, KindIoError, KindCorrupt,
		KindAlreadyExists, KindUnsupported, KindConflict,
	}
	for _, k := range kinds {
		require.NotEqual(t, "unknown error kind", k.String())
	}
}
