// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
)

func TestMetadataEncodeDecodeRoundTrip(t *testing.T) {
	m := metadata{
		keyType:            base.KeyTypeUint32,
		combineCount:       4,
		listenerID:         7,
		nextRun:            3,
		digestInterval:     60,
		lastDigestUnix:     1000,
		combineInterval:    120,
		lastCombineUnix:    2000,
		autocombine:        true,
		autocombineDigests: 5,
		runs: []runEntry{
			{number: 0, kind: RunKindRegbase},
			{number: 1, kind: RunKindFastbase},
		},
	}
	buf := encodeMetadata(m)
	got, err := decodeMetadata(buf)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeMetadataRejectsBadMagic(t *testing.T) {
	buf := encodeMetadata(metadata{keyType: base.KeyTypeUint32})
	buf[0] ^= 0xff
	_, err := decodeMetadata(buf)
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindCorrupt))
}

func TestDecodeMetadataRejectsTruncatedHeader(t *testing.T) {
	_, err := decodeMetadata([]byte{1, 2, 3})
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindCorrupt))
}

func TestCompressionForFallsBackToDefaultWhenUnset(t *testing.T) {
	require.Equal(t, dtable.CompressionSnappy, compressionFor(base.Params{}, "snappy"))
	require.Equal(t, dtable.CompressionZstdFast, compressionFor(base.Params{}, "zstd_fast"))
}

func TestCompressionForHonorsExplicitChoice(t *testing.T) {
	p := base.Params{"compression": "zstd_high"}
	require.Equal(t, dtable.CompressionZstdHigh, compressionFor(p, "snappy"))

	p2 := base.Params{"compression": "none"}
	require.Equal(t, dtable.CompressionNone, compressionFor(p2, "snappy"))
}

func TestRunFileNameIsZeroPadded(t *testing.T) {
	require.Equal(t, "runs/run_0000000000", runFileName(0))
	require.Equal(t, "runs/run_0000000042", runFileName(42))
}
