// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvildb/anvil/internal/base"
)

func TestOpenCreatesHeaderOnFreshFile(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer j.Close()

	res, err := j.Replay(nil, false)
	require.NoError(t, err)
	require.Empty(t, res.Live)
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(1, []byte("a")))
	require.NoError(t, j.Append(1, []byte("b")))
	require.NoError(t, j.Append(2, []byte("x")))

	res, err := j.Replay(map[ListenerID]bool{1: true, 2: true}, true)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, res.Live[1])
	require.Equal(t, [][]byte{[]byte("x")}, res.Live[2])
	require.Empty(t, res.Missing)
}

func TestDiscardDropsPriorEntriesForListener(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(1, []byte("a")))
	require.NoError(t, j.Discard(1))
	require.NoError(t, j.Append(1, []byte("b")))

	res, err := j.Replay(map[ListenerID]bool{1: true}, false)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("b")}, res.Live[1])
}

func TestReplayReportsUnregisteredListeners(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(9, []byte("orphan")))

	res, err := j.Replay(nil, false)
	require.NoError(t, err)
	require.True(t, res.Missing[9])
	require.Equal(t, [][]byte{[]byte("orphan")}, res.Live[9])

	_, err = j.Replay(nil, true)
	require.Error(t, err)
	require.True(t, base.Is(err, base.KindNotFound))
}

func TestReopenReplaysPersistedState(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)
	require.NoError(t, j.Append(1, []byte("persisted")))
	require.NoError(t, j.Close())

	reopened, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer reopened.Close()

	res, err := reopened.Replay(map[ListenerID]bool{1: true}, false)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("persisted")}, res.Live[1])
}

func TestCompactDropsListenersNotKept(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(1, []byte("keep")))
	require.NoError(t, j.Append(2, []byte("drop")))

	require.NoError(t, j.Compact(map[ListenerID]bool{1: true}))

	res, err := j.Replay(map[ListenerID]bool{1: true}, false)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("keep")}, res.Live[1])
	require.Empty(t, res.Live[2])
}

func TestCompactSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "system.journal")
	require.NoError(t, err)

	require.NoError(t, j.Append(1, []byte("keep")))
	require.NoError(t, j.Append(2, []byte("drop")))
	require.NoError(t, j.Compact(map[ListenerID]bool{1: true}))
	require.NoError(t, j.Close())

	reopened, err := Open(dir, "system.journal")
	require.NoError(t, err)
	defer reopened.Close()

	res, err := reopened.Replay(map[ListenerID]bool{1: true}, false)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("keep")}, res.Live[1])
	require.Empty(t, res.Live[2])
}
