// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
)

func TestEncodeDecodeMutationRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		key        base.Key
		value      base.Value
		appendHint bool
	}{
		{"uint32 value", base.NewUint32Key(7), base.Value{Exists: true, Bytes: []byte("seven")}, false},
		{"uint32 append hint", base.NewUint32Key(9), base.Value{Exists: true, Bytes: []byte("nine")}, true},
		{"double value", base.NewDoubleKey(3.5), base.Value{Exists: true, Bytes: []byte("pi-ish")}, false},
		{"string value", base.NewStringKey("hello"), base.Value{Exists: true, Bytes: []byte("world")}, false},
		{"blob value", base.NewBlobKey([]byte{1, 2, 3}), base.Value{Exists: true, Bytes: []byte{9, 9}}, false},
		{"tombstone", base.NewUint32Key(1), base.Tombstone(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payload := EncodeMutation(c.key, c.value, c.appendHint)
			k, v, appendHint, err := DecodeMutation(payload)
			require.NoError(t, err)
			require.Equal(t, c.key.Type(), k.Type())
			require.Equal(t, c.appendHint, appendHint)
			if c.value.IsTombstone() {
				require.True(t, v.IsTombstone())
			} else {
				require.Equal(t, c.value.Bytes, v.Bytes)
			}
		})
	}
}

func TestDecodeMutationRejectsTruncatedPayload(t *testing.T) {
	_, _, _, err := DecodeMutation([]byte{0})
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindCorrupt))
}

func TestReplayIntoRebuildsMemtableState(t *testing.T) {
	var payloads [][]byte
	payloads = append(payloads, EncodeMutation(base.NewUint32Key(1), base.Value{Exists: true, Bytes: []byte("a")}, false))
	payloads = append(payloads, EncodeMutation(base.NewUint32Key(2), base.Value{Exists: true, Bytes: []byte("b")}, false))
	payloads = append(payloads, EncodeMutation(base.NewUint32Key(1), base.Tombstone(), false))

	m := New(base.KeyTypeUint32)
	require.NoError(t, ReplayInto(m, payloads))

	v1, err := m.Lookup(base.NewUint32Key(1))
	require.NoError(t, err)
	require.True(t, v1.IsTombstone())

	v2, err := m.Lookup(base.NewUint32Key(2))
	require.NoError(t, err)
	require.Equal(t, "b", string(v2.Bytes))
}
