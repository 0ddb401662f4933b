// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
)

// runHandle is a reference-counted wrapper around one on-disk run,
// implementing spec.md §5's "deferred destruction across iterators": a
// run moved out of the active list is parked with its reference count
// intact, and only deleted once the count reaches zero.
type runHandle struct {
	number uint32
	kind   RunKind
	table  dtable.DTable
	path   string // absolute path to the run file
	refs   int32
}

func (h *runHandle) retain() { atomic.AddInt32(&h.refs, 1) }

// release drops a reference; if this was the last one and the run has
// been doomed, m finalizes (closes and deletes) it.
func (h *runHandle) release(m *Managed) {
	if atomic.AddInt32(&h.refs, -1) == 0 {
		m.maybeFinalizeDoomed(h)
	}
}

// doomRun parks h in the doomed set. It is finalized immediately if
// nothing currently holds a reference.
func (m *Managed) doomRun(h *runHandle) {
	m.doomMu.Lock()
	m.doomed = append(m.doomed, h)
	m.doomMu.Unlock()
	if atomic.LoadInt32(&h.refs) == 0 {
		m.maybeFinalizeDoomed(h)
	}
}

func (m *Managed) maybeFinalizeDoomed(h *runHandle) {
	m.doomMu.Lock()
	defer m.doomMu.Unlock()
	if atomic.LoadInt32(&h.refs) != 0 {
		return
	}
	for i, d := range m.doomed {
		if d == h {
			m.doomed = append(m.doomed[:i], m.doomed[i+1:]...)
			_ = h.table.Close()
			_ = os.Remove(h.path)
			return
		}
	}
}

// ShutdownDoomed forces finalization of every still-doomed run regardless
// of outstanding references, per spec.md §5: "Shutdown forces invocation
// of all doomed callbacks."
func (m *Managed) ShutdownDoomed() {
	m.doomMu.Lock()
	doomed := m.doomed
	m.doomed = nil
	m.doomMu.Unlock()
	for _, h := range doomed {
		_ = h.table.Close()
		_ = os.Remove(h.path)
	}
}

// scanKeyRange walks it from the start, reporting the inclusive
// [min,max] range of its uint32 keys and how many entries it holds, then
// leaves it freshly reset to First() so the caller can stream it again
// for the actual write. Used only to decide whether CreateArray's density
// threshold (dtable.ShouldUseArray) is met.
func scanKeyRange(it dtable.Iterator) (min, max uint32, count int, ok bool) {
	if !it.First() {
		it.First()
		return 0, 0, 0, false
	}
	min = it.Key().Uint32()
	max = min
	for valid := true; valid; valid = it.Next() {
		if !it.Valid() {
			break
		}
		k := it.Key().Uint32()
		if k < min {
			min = k
		}
		if k > max {
			max = k
		}
		count++
	}
	it.First()
	return min, max, count, true
}

// writeRun streams src (optionally shadowed by shadow) into a new run
// file at path, choosing the dense-array layout automatically when the
// managed dtable's base/fastbase class is "array" and the key density
// clears dtable.ShouldUseArray's threshold, else the generic layout.
// preferFastbase selects the fastbase class/config digest uses when
// use_fastbase is configured (spec.md §4.4 step 2).
func (m *Managed) writeRun(path string, src, shadow dtable.Iterator, hasShadow, dropTombstones, preferFastbase, forCombine bool) (RunKind, error) {
	class, params, kind := m.baseClass, m.baseParams, RunKindRegbase
	if preferFastbase && m.fastbaseClass != "" {
		class, params, kind = m.fastbaseClass, m.fastbaseParams, RunKindFastbase
	}
	defaultCodec := "snappy"
	switch {
	case forCombine:
		defaultCodec = "zstd_high"
	case preferFastbase:
		defaultCodec = "zstd_fast"
	}
	compression := compressionFor(params, defaultCodec)

	if class == "array" && m.keyType == base.KeyTypeUint32 {
		minKey, maxKey, count, ok := scanKeyRange(src)
		if ok && dtable.ShouldUseArray(minKey, maxKey, count) {
			arraySize := maxKey - minKey + 1
			valueCap := params.Int("value_cap", dtable.DefaultArrayValueCap)
			err := dtable.CreateArray(path, minKey, arraySize, src, shadow, hasShadow, dropTombstones, compression, valueCap)
			return kind, err
		}
	}
	return kind, dtable.CreateSimple(path, m.keyType, m.blobCmp, src, shadow, hasShadow, dropTombstones, compression)
}

// compressionFor maps a base/fastbase Params sub-tree's "compression" key
// to a dtable.Compression, falling back to def when unset: digest's
// fresh base runs default to snappy, digest's optional fastbase runs to
// klauspost's zstd (fast encoder), and combine's colder, larger runs to
// DataDog/zstd at a high level, per SPEC_FULL.md's domain stack table.
func compressionFor(params base.Params, def string) dtable.Compression {
	switch params.String("compression", def) {
	case "none":
		return dtable.CompressionNone
	case "snappy":
		return dtable.CompressionSnappy
	case "zstd_fast":
		return dtable.CompressionZstdFast
	case "zstd_high":
		return dtable.CompressionZstdHigh
	default:
		return dtable.CompressionSnappy
	}
}

func (m *Managed) openRun(number uint32) (*runHandle, error) {
	path := filepath.Join(m.dir, runFileName(number))
	table, err := dtable.DetectAndOpen(path, m.blobCmp)
	if err != nil {
		return nil, err
	}
	return &runHandle{number: number, table: table, path: path}, nil
}
