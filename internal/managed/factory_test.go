// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/journal"
	"github.com/anvildb/anvil/internal/registry"
)

func TestClassFactoryCreateThenOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.Open(dir, "system.journal")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	ids, err := journal.OpenIDSource(dir)
	require.NoError(t, err)

	ctx := registry.Context{Dir: dir, Name: "tbl", Journal: j, IDSource: ids}
	require.NoError(t, registry.Default.Create("managed", ctx, base.KeyTypeUint32))

	dt, err := registry.Default.Open("managed", ctx)
	require.NoError(t, err)
	defer dt.Close()
	require.Equal(t, base.KeyTypeUint32, dt.KeyType())
	require.True(t, dt.Writable())

	m, ok := dt.(*Managed)
	require.True(t, ok)
	require.NoError(t, m.Insert(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
}
