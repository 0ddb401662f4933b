// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package journal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDSourceAllocatesIncreasingIDs(t *testing.T) {
	dir := t.TempDir()
	ids, err := OpenIDSource(dir)
	require.NoError(t, err)

	first, err := ids.Next()
	require.NoError(t, err)
	second, err := ids.Next()
	require.NoError(t, err)
	require.Less(t, uint64(first), uint64(second))
}

func TestIDSourcePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ids, err := OpenIDSource(dir)
	require.NoError(t, err)

	a, err := ids.Next()
	require.NoError(t, err)
	b, err := ids.Next()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	reopened, err := OpenIDSource(dir)
	require.NoError(t, err)
	c, err := reopened.Next()
	require.NoError(t, err)
	require.Greater(t, uint64(c), uint64(b))
}
