// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"path/filepath"
	"time"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/journal"
	"github.com/anvildb/anvil/internal/memtable"
)

// Digest converts the current memtable into a new immutable sorted run,
// per spec.md §4.4 step 2: "digest streams the memtable into create() to
// produce a new run, installs it as the newest on-disk run, allocates a
// fresh memtable and listener id, and atomically swaps the metadata and
// overlay." If background is true the work is handed to the background
// worker and Digest returns immediately with a nil error; the outcome is
// observed with BackgroundJoin.
func (m *Managed) Digest(background bool) error {
	op := func() error { return m.digestLocked(m.fastbaseClass != "") }
	if background {
		return m.runBackground(op)
	}
	return op()
}

// digestLocked takes viewMu itself (despite the name, kept for symmetry
// with combineLocked) rather than expecting a held lock, because it may
// need to trigger an autocombine afterward — combineLocked takes the same
// lock, and sync.RWMutex is not reentrant.
func (m *Managed) digestLocked(preferFastbase bool) error {
	triggerCombine, runCount, err := m.digestOnce(preferFastbase)
	if err != nil || !triggerCombine {
		return err
	}
	return m.combineLocked(0, runCount)
}

func (m *Managed) digestOnce(preferFastbase bool) (triggerCombine bool, runCount int, err error) {
	start := time.Now()
	m.viewMu.Lock()
	defer m.viewMu.Unlock()

	if m.memtable.Size() == 0 {
		return false, len(m.runs), nil
	}

	src, err := m.memtable.Iterator()
	if err != nil {
		return false, 0, err
	}

	number := m.allocRunNumberLocked()
	path := filepath.Join(m.dir, runFileName(number))
	dropTombstones := len(m.runs) == 0
	kind, err := m.writeRun(path, src, dtable.Iterator{}, false, dropTombstones, preferFastbase, false)
	if err != nil {
		return false, 0, err
	}

	h, err := m.openRun(number)
	if err != nil {
		return false, 0, err
	}
	h.kind = kind

	oldListener := m.listenerID
	newListener, err := m.idSrc.Next()
	if err != nil {
		h.table.Close()
		return false, 0, err
	}

	m.runs = append(m.runs, h)
	m.memtable = memtable.New(m.keyType)
	if m.blobCmp != nil {
		if err := m.memtable.SetBlobCmp(m.blobCmp); err != nil {
			return false, 0, err
		}
	}
	m.listenerID = newListener
	m.lastDigest = time.Now()
	m.digestsSinceCombine++

	if err := m.rebuildOverlayLocked(); err != nil {
		return false, 0, err
	}
	if err := m.persistMetadataLocked(); err != nil {
		return false, 0, err
	}
	if err := m.journal.Discard(oldListener); err != nil {
		return false, 0, err
	}

	m.metrics.observeDigest(time.Since(start))
	m.metrics.setRunCount(len(m.runs))

	trigger := m.cfg.Autocombine && m.digestsSinceCombine >= m.cfg.AutocombineDigests && len(m.runs) > 1
	return trigger, len(m.runs), nil
}

// Combine merges the runs in [first, last) into a single run, per
// spec.md §4.4 step 3. last may equal DiskDtables()+1 to also fold the
// current memtable into the merge as the newest source level. Combine
// holds the view lock for the whole merge, and when the memtable is
// included it is replaced by a fresh one (with a new listener id) only
// after the merged run has been written, so writes wait until combine
// finishes.
func (m *Managed) Combine(first, last int, background bool) error {
	op := func() error { return m.combineLocked(first, last) }
	if background {
		return m.runBackground(op)
	}
	return op()
}

func (m *Managed) combineLocked(first, last int) error {
	start := time.Now()
	m.viewMu.Lock()
	defer m.viewMu.Unlock()

	if first < 0 || first > last || last > len(m.runs)+1 {
		return base.Errorf(base.KindInvalidArgument, "anvildb/managed: combine range [%d,%d) out of bounds for %d runs", base.Safe(first), base.Safe(last), base.Safe(len(m.runs)))
	}

	includesMemtable := last == len(m.runs)+1
	sourceLevels := make([]dtable.DTable, 0, last-first+1)
	for _, h := range m.runs[first:minInt(last, len(m.runs))] {
		sourceLevels = append(sourceLevels, h.table)
	}

	var oldListener journal.ListenerID
	var replacedMemtable bool
	if includesMemtable {
		sourceLevels = append(sourceLevels, m.memtable)
		replacedMemtable = true
		oldListener = m.listenerID
	}
	// A plain newest-wins merge, not OverlayDTable's read-path iterator:
	// create()'s merge (internal/dtable/create.go) must see an in-range
	// tombstone to carry it into the combined run or correctly drop it,
	// and OverlayDTable.Iterator silently hides a winning tombstone since
	// it implements Lookup/Present/the public Iterator instead.
	src, err := dtable.NewRawMerge(m.blobCmp, sourceLevels)
	if err != nil {
		return err
	}

	hasShadow := first > 0
	var shadow dtable.Iterator
	if hasShadow {
		shadowLevels := make([]dtable.DTable, 0, first)
		for _, h := range m.runs[:first] {
			shadowLevels = append(shadowLevels, h.table)
		}
		shadow, err = dtable.NewRawMerge(m.blobCmp, shadowLevels)
		if err != nil {
			return err
		}
	}
	dropTombstones := !hasShadow

	number := m.allocRunNumberLocked()
	path := filepath.Join(m.dir, runFileName(number))
	kind, err := m.writeRun(path, src, shadow, hasShadow, dropTombstones, false, true)
	if err != nil {
		return err
	}

	newHandle, err := m.openRun(number)
	if err != nil {
		return err
	}
	newHandle.kind = kind

	replaced := append([]*runHandle(nil), m.runs[first:minInt(last, len(m.runs))]...)

	newRuns := make([]*runHandle, 0, len(m.runs)-len(replaced)+1)
	newRuns = append(newRuns, m.runs[:first]...)
	newRuns = append(newRuns, newHandle)
	newRuns = append(newRuns, m.runs[minInt(last, len(m.runs)):]...)
	m.runs = newRuns

	if replacedMemtable {
		m.memtable = memtable.New(m.keyType)
		if m.blobCmp != nil {
			if err := m.memtable.SetBlobCmp(m.blobCmp); err != nil {
				return err
			}
		}
		newListener, err := m.idSrc.Next()
		if err != nil {
			return err
		}
		m.listenerID = newListener
	}

	m.lastCombine = time.Now()
	m.digestsSinceCombine = 0

	if err := m.rebuildOverlayLocked(); err != nil {
		return err
	}
	if err := m.persistMetadataLocked(); err != nil {
		return err
	}
	if replacedMemtable {
		if err := m.journal.Discard(oldListener); err != nil {
			return err
		}
	}

	for _, h := range replaced {
		m.doomRun(h)
	}

	m.metrics.observeCombine(time.Since(start))
	m.metrics.setRunCount(len(m.runs))
	m.doomMu.Lock()
	m.metrics.setDoomedCount(len(m.doomed))
	m.doomMu.Unlock()
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Maintain runs digest then combine according to the configured policy
// thresholds (digest_interval/combine_interval/combine_count/
// autocombine_digests), per spec.md §4.4's maintenance loop. force skips
// the interval checks and always digests (if the memtable is non-empty)
// and combines (if enough runs have accumulated).
func (m *Managed) Maintain(force, background bool) error {
	op := func() error { return m.maintainLocked(force) }
	if background {
		return m.runBackground(op)
	}
	return op()
}

func (m *Managed) maintainLocked(force bool) error {
	m.viewMu.RLock()
	memtableSize := m.memtable.Size()
	sinceDigest := time.Since(m.lastDigest)
	sinceCombine := time.Since(m.lastCombine)
	m.viewMu.RUnlock()

	shouldDigest := memtableSize > 0 && (force || (m.cfg.DigestInterval > 0 && sinceDigest >= m.cfg.DigestInterval))
	if shouldDigest {
		if err := m.digestLocked(m.fastbaseClass != ""); err != nil {
			return err
		}
	}

	m.viewMu.RLock()
	runCount := len(m.runs)
	digestsSince := m.digestsSinceCombine
	m.viewMu.RUnlock()

	shouldCombine := runCount > 1 && (force ||
		(m.cfg.CombineInterval > 0 && sinceCombine >= m.cfg.CombineInterval) ||
		(m.cfg.CombineCount > 0 && digestsSince >= m.cfg.CombineCount))
	if shouldCombine {
		return m.combineLocked(0, runCount)
	}
	return nil
}
