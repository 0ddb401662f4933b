// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTombstoneIsExistsWithNilBytes(t *testing.T) {
	v := Tombstone()
	require.True(t, v.Exists)
	require.Nil(t, v.Bytes)
	require.True(t, v.IsTombstone())
}

func TestNotFoundIsNotExists(t *testing.T) {
	v := NotFound()
	require.False(t, v.Exists)
	require.False(t, v.IsTombstone())
}

func TestLiveValueIsNotTombstone(t *testing.T) {
	v := Value{Exists: true, Bytes: []byte("x")}
	require.False(t, v.IsTombstone())
}

func TestEmptyButExistingValueIsNotTombstone(t *testing.T) {
	// A zero-length (non-nil) byte slice is still a live empty value, not
	// a tombstone: only a nil Bytes marks the tombstone sentinel.
	v := Value{Exists: true, Bytes: []byte{}}
	require.False(t, v.IsTombstone())
}
