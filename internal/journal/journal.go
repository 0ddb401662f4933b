// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package journal

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/txfile"
)

// Journal is the append-only, crash-safe log backing every memtable and
// abortable transaction. A single Journal instance is shared by every
// managed dtable in a process (spec.md calls it "the system journal");
// each memtable generation and each abortable transaction gets its own
// ListenerID so replay can route records to the right in-memory consumer.
type Journal struct {
	mu   sync.Mutex
	dir  string
	name string
	f    *os.File
}

// Open opens the journal file at dir/name, creating it with a fresh
// header if it does not exist.
func Open(dir, name string) (*Journal, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, base.Wrap(base.KindIoError, err, "anvildb/journal: open %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, base.Wrap(base.KindIoError, err, "anvildb/journal: stat %s", name)
	}
	if info.Size() == 0 {
		if _, err := f.Write(encodeHeader()); err != nil {
			f.Close()
			return nil, base.Wrap(base.KindIoError, err, "anvildb/journal: writing header")
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, base.Wrap(base.KindIoError, err, "anvildb/journal: syncing header")
		}
	} else {
		hdr := make([]byte, headerLen)
		if _, err := f.ReadAt(hdr, 0); err != nil {
			f.Close()
			return nil, base.Wrap(base.KindIoError, err, "anvildb/journal: reading header")
		}
		if err := decodeHeader(hdr); err != nil {
			f.Close()
			return nil, err
		}
	}
	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return nil, base.Wrap(base.KindIoError, err, "anvildb/journal: seeking to end")
	}
	return &Journal{dir: dir, name: name, f: f}, nil
}

// Append durably appends payload tagged with listener, per spec.md §4.4
// step 1 of the write path: the call does not return until the record is
// fsynced, so a subsequent memtable insert can be considered committed.
func (j *Journal) Append(listener ListenerID, payload []byte) error {
	return j.write(record{listener: listener, payload: payload})
}

// Discard appends a "discard all entries for this listener id" marker,
// used when a memtable is digested or a transaction is aborted/committed.
func (j *Journal) Discard(listener ListenerID) error {
	return j.write(record{listener: listener, discard: true})
}

func (j *Journal) write(r record) error {
	buf := encodeRecord(r)
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(buf); err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/journal: appending record")
	}
	if err := j.f.Sync(); err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/journal: syncing append")
	}
	return nil
}

// Close closes the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// ReplayResult is the outcome of scanning the whole journal: the live
// payloads per listener (in append order, after applying discard markers)
// and the set of listener ids seen that were not in the registered set
// passed to Replay.
type ReplayResult struct {
	Live    map[ListenerID][][]byte
	Missing map[ListenerID]bool
}

// Replay scans the entire journal and reconstructs the live payload list
// per listener id, honoring discard markers. registered is the set of
// listener ids the caller knows about (e.g. the managed dtable's current
// memtable listener plus any in-flight transaction listeners); records for
// a listener id absent from registered are still replayed (so a reopen
// that hasn't rebuilt every consumer yet doesn't lose data) but are also
// reported in Missing. If failMissing is true and Missing is non-empty,
// Replay returns a NotFound error per spec.md §7's "missing" playback case.
func (j *Journal) Replay(registered map[ListenerID]bool, failMissing bool) (ReplayResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.f.Seek(0, os.SEEK_SET); err != nil {
		return ReplayResult{}, base.Wrap(base.KindIoError, err, "anvildb/journal: seeking to start")
	}
	data, err := readAll(j.f)
	if err != nil {
		return ReplayResult{}, base.Wrap(base.KindIoError, err, "anvildb/journal: reading journal")
	}
	if _, err := j.f.Seek(0, os.SEEK_END); err != nil {
		return ReplayResult{}, base.Wrap(base.KindIoError, err, "anvildb/journal: seeking to end")
	}

	if err := decodeHeader(data); err != nil {
		return ReplayResult{}, err
	}
	buf := data[headerLen:]

	live := make(map[ListenerID][][]byte)
	missing := make(map[ListenerID]bool)

	for len(buf) > 0 {
		r, n, err := decodeRecord(buf)
		if err != nil {
			return ReplayResult{}, err
		}
		buf = buf[n:]

		if !registered[r.listener] {
			missing[r.listener] = true
		}
		if r.discard {
			delete(live, r.listener)
			continue
		}
		live[r.listener] = append(live[r.listener], r.payload)
	}

	if failMissing && len(missing) > 0 {
		return ReplayResult{Live: live, Missing: missing}, base.Errorf(base.KindNotFound,
			"anvildb/journal: replay found %d unregistered listener id(s)", base.Safe(len(missing)))
	}
	return ReplayResult{Live: live, Missing: missing}, nil
}

// Compact rewrites the journal to contain only the live entries for the
// given listener ids, dropping discarded listeners and superseded discard
// markers entirely. This is the "online digest that rewrites a compacted
// copy" spec.md §6 alludes to without naming; it keeps the journal from
// growing unboundedly across many memtable digests. Compact is atomic:
// either the compacted file replaces the original, or the original is left
// untouched.
func (j *Journal) Compact(keep map[ListenerID]bool) error {
	j.mu.Lock()
	result, err := j.replayLocked()
	j.mu.Unlock()
	if err != nil {
		return err
	}

	var out []byte
	out = append(out, encodeHeader()...)
	for listener, payloads := range result.Live {
		if !keep[listener] {
			continue
		}
		for _, p := range payloads {
			out = append(out, encodeRecord(record{listener: listener, payload: p})...)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tx := txfile.Begin(j.dir)
	tx.Write(j.name+".compact", out)
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := j.f.Close(); err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/journal: closing old journal")
	}
	compactedPath := filepath.Join(j.dir, j.name+".compact")
	finalPath := filepath.Join(j.dir, j.name)
	if err := os.Rename(compactedPath, finalPath); err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/journal: installing compacted journal")
	}

	f, err := os.OpenFile(finalPath, os.O_RDWR, 0o644)
	if err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/journal: reopening compacted journal")
	}
	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return base.Wrap(base.KindIoError, err, "anvildb/journal: seeking compacted journal")
	}
	j.f = f
	return nil
}

func (j *Journal) replayLocked() (ReplayResult, error) {
	if _, err := j.f.Seek(0, os.SEEK_SET); err != nil {
		return ReplayResult{}, base.Wrap(base.KindIoError, err, "anvildb/journal: seeking to start")
	}
	data, err := readAll(j.f)
	if err != nil {
		return ReplayResult{}, base.Wrap(base.KindIoError, err, "anvildb/journal: reading journal")
	}
	if _, err := j.f.Seek(0, os.SEEK_END); err != nil {
		return ReplayResult{}, base.Wrap(base.KindIoError, err, "anvildb/journal: seeking to end")
	}
	if err := decodeHeader(data); err != nil {
		return ReplayResult{}, err
	}
	buf := data[headerLen:]
	live := make(map[ListenerID][][]byte)
	for len(buf) > 0 {
		r, n, err := decodeRecord(buf)
		if err != nil {
			return ReplayResult{}, err
		}
		buf = buf[n:]
		if r.discard {
			delete(live, r.listener)
			continue
		}
		live[r.listener] = append(live[r.listener], r.payload)
	}
	return ReplayResult{Live: live}, nil
}

func readAll(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}
