// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package ctable implements the columnar view spec.md §4.5 describes: a
// row keyed by the same key type as every underlying dtable, with each
// column stored as an independent, parallel managed dtable. Grounded
// almost directly on original_source/column_ctable.cpp/.h — the per-
// column dtable_factory lookup, the cct_meta name table, and the
// column-0-driven row iterator all carry over; see DESIGN.md for the
// Open Question this package resolves (row presence driven by column 0
// only, matching the original's documented FIXME rather than a union).
package ctable

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/journal"
	"github.com/anvildb/anvil/internal/registry"
)

// maintainer is implemented by any column whose underlying class supports
// background maintenance (in practice, "managed" and anything wrapping
// it). Columns registered under a class that has no such policy (a bare
// "simple" or "array" run, read-only once created) simply have nothing
// for Maintain to fan out to on that column.
type maintainer interface {
	Maintain(force, background bool) error
}

// ColumnConfig describes one column at creation time: its name, the
// factory class backing it (defaulting to the ctable-wide base class if
// empty), and that class's Params (defaulting to the ctable-wide
// base_config if nil).
type ColumnConfig struct {
	Name   string
	Class  string
	Params base.Params
}

// Config is CTable.Create's top-level configuration, mirroring the
// original's column_ctable::create: a default base class/config applied
// to every column, individually overridable per column exactly as
// "column%d_base"/"column%d_config" do in column_ctable.cpp.
type Config struct {
	BaseClass  string
	BaseConfig base.Params
	Columns    []ColumnConfig
}

// CTable is a row keyed by KeyType, backed by one parallel dtable per
// column. It does not itself implement dtable.DTable — a row has many
// values, not one — but every per-column operation delegates to a
// dtable.DTable built through internal/registry, so a column can be any
// registered class (typically "managed", but a read-only "simple" column
// or a "cache"-wrapped column both work unmodified).
type CTable struct {
	dir     string
	keyType base.KeyType

	names   []string
	index   map[string]int
	columns []dtable.DTable

	maintainGroup singleflight.Group
}

// Create initializes a new ctable directory with len(cfg.Columns) parallel
// column dtables, persists their names and order in cct_meta, and refuses
// a duplicate column name with AlreadyExists — exactly the checks
// column_ctable::create performs before creating anything on disk.
func Create(dir string, keyType base.KeyType, cfg Config, j *journal.Journal, ids *journal.IDSource, log base.Logger) error {
	if len(cfg.Columns) == 0 {
		return base.Errorf(base.KindInvalidArgument, "anvildb/ctable: at least one column is required")
	}
	seen := make(map[string]bool, len(cfg.Columns))
	names := make([]string, 0, len(cfg.Columns))
	for _, c := range cfg.Columns {
		if c.Name == "" {
			return base.Errorf(base.KindInvalidArgument, "anvildb/ctable: column name must not be empty")
		}
		if seen[c.Name] {
			return base.Errorf(base.KindAlreadyExists, "anvildb/ctable: duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}

	if err := os.MkdirAll(filepath.Join(dir, columnsDirName), 0o755); err != nil {
		return base.Wrap(base.KindIoError, err, "anvildb/ctable: creating columns directory")
	}

	for _, c := range cfg.Columns {
		class := c.Class
		if class == "" {
			class = cfg.BaseClass
		}
		params := c.Params
		if params == nil {
			params = cfg.BaseConfig
		}
		ctx := registry.Context{
			Dir:      filepath.Join(dir, columnsDirName),
			Name:     c.Name,
			Params:   params,
			Journal:  j,
			IDSource: ids,
			Logger:   log,
		}
		if err := registry.Default.Create(class, ctx, keyType); err != nil {
			return base.Wrap(base.KindIoError, err, "anvildb/ctable: creating column %q", c.Name)
		}
	}

	return writeMetadata(dir, metadata{keyType: keyType, columns: names})
}

// Open reopens an existing ctable directory, recovering column names,
// order, and key type from cct_meta, and opening every column dtable
// through the registry under the class cfg names for it.
//
// Open needs to know each column's class to reopen it through the
// registry, but cct_meta (matching the original's on-disk format) does
// not persist one; cfg supplies the same per-column class/params Create
// was given; an empty Class falls back to cfg.BaseClass, matching the
// original's "base"/"column%d_base" resolution at open time too.
func Open(dir string, cfg Config, j *journal.Journal, ids *journal.IDSource, log base.Logger) (*CTable, error) {
	meta, err := readMetadata(dir)
	if err != nil {
		return nil, err
	}

	classByName := make(map[string]string, len(cfg.Columns))
	paramsByName := make(map[string]base.Params, len(cfg.Columns))
	for _, c := range cfg.Columns {
		classByName[c.Name] = c.Class
		paramsByName[c.Name] = c.Params
	}

	ct := &CTable{
		dir:     dir,
		keyType: meta.keyType,
		names:   meta.columns,
		index:   make(map[string]int, len(meta.columns)),
		columns: make([]dtable.DTable, len(meta.columns)),
	}
	for i, name := range meta.columns {
		ct.index[name] = i
		class := classByName[name]
		if class == "" {
			class = cfg.BaseClass
		}
		params := paramsByName[name]
		if params == nil {
			params = cfg.BaseConfig
		}
		ctx := registry.Context{
			Dir:      filepath.Join(dir, columnsDirName),
			Name:     name,
			Params:   params,
			Journal:  j,
			IDSource: ids,
			Logger:   log,
		}
		col, err := registry.Default.Open(class, ctx)
		if err != nil {
			for _, opened := range ct.columns[:i] {
				if opened != nil {
					opened.Close()
				}
			}
			return nil, base.Wrap(base.KindIoError, err, "anvildb/ctable: opening column %q", name)
		}
		ct.columns[i] = col
	}
	return ct, nil
}

// KeyType reports the row key type every column shares.
func (ct *CTable) KeyType() base.KeyType { return ct.keyType }

// ColumnNames returns the columns in their persisted, creation-time
// order.
func (ct *CTable) ColumnNames() []string {
	return append([]string(nil), ct.names...)
}

func (ct *CTable) column(name string) (dtable.DTable, error) {
	i, ok := ct.index[name]
	if !ok {
		return nil, base.Errorf(base.KindNotFound, "anvildb/ctable: no such column %q", name)
	}
	return ct.columns[i], nil
}

// Contains reports whether row has a live entry in column 0, the same
// row-presence test the row-major iterator uses (column-0-driven, see
// DESIGN.md Open Question decision 1).
func (ct *CTable) Contains(row base.Key) (bool, error) {
	meta, ok, err := ct.columns[0].Present(row)
	if err != nil {
		return false, err
	}
	return ok && meta.Exists, nil
}

// Find returns row's value in column, or base.NotFound() if row has no
// entry there.
func (ct *CTable) Find(row base.Key, column string) (base.Value, error) {
	col, err := ct.column(column)
	if err != nil {
		return base.Value{}, err
	}
	return col.Lookup(row)
}

// Insert stores row=value in column, delegating directly to that
// column's dtable, per column_ctable::insert.
func (ct *CTable) Insert(row base.Key, column string, value base.Value, appendHint bool) error {
	col, err := ct.column(column)
	if err != nil {
		return err
	}
	return col.Insert(row, value, appendHint)
}

// RemoveColumn writes a tombstone to a single column, equivalent to
// Insert(row, column, base.Tombstone(), false), per column_ctable's
// single-column remove overload.
func (ct *CTable) RemoveColumn(row base.Key, column string) error {
	col, err := ct.column(column)
	if err != nil {
		return err
	}
	return col.Remove(row)
}

// Remove writes a tombstone to every column for row inside one
// transactional bracket — per spec.md §4.5, "either all columns record
// the removal or none does." Grounded on column_ctable::remove's
// tx_start_r/tx_end_r bracket, reimplemented with golang.org/x/sync's
// errgroup fanning the per-column tombstone writes out concurrently (the
// columns are independent managed dtables, each with its own journal
// listener id, so there is no shared mutable state for concurrent
// Remove calls to race on). Each goroutine captures the column's value
// for row before overwriting it; if any column's append/tombstone write
// fails, every column that already succeeded and had a prior value is
// compensated by reinserting that value, so no column that held a value
// for row is left tombstoned on its own. A succeeded column whose prior
// lookup reported no entry keeps the new tombstone. There is no single
// underlying transaction spanning every column's journal.
func (ct *CTable) Remove(row base.Key) error {
	prior := make([]base.Value, len(ct.columns))
	succeeded := make([]bool, len(ct.columns))
	var mu sync.Mutex

	var g errgroup.Group
	for i, col := range ct.columns {
		i, col := i, col
		g.Go(func() error {
			v, err := col.Lookup(row)
			if err != nil {
				return err
			}
			if err := col.Remove(row); err != nil {
				return err
			}
			mu.Lock()
			prior[i] = v
			succeeded[i] = true
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for i, col := range ct.columns {
			if !succeeded[i] || !prior[i].Exists {
				continue
			}
			_ = col.Insert(row, prior[i], false)
		}
		return err
	}
	return nil
}

// SetBlobCmp installs cmp on every column and returns the first error, if
// any, matching column_ctable::set_blob_cmp's "try every column, report
// the first failure" behavior.
func (ct *CTable) SetBlobCmp(cmp base.Comparator) error {
	var first error
	for _, col := range ct.columns {
		if err := col.SetBlobCmp(cmp); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Maintain runs each column's maintenance policy (digest/combine, for a
// "managed"-class column) and returns the first non-nil error, exactly as
// column_ctable::maintain does. Concurrent Maintain calls on the same
// CTable are deduplicated with golang.org/x/sync/singleflight so an
// overlapping caller observes the in-flight call's result rather than
// triggering a second redundant fan-out, per SPEC_FULL.md's domain-stack
// wiring note for this package.
func (ct *CTable) Maintain(force, background bool) error {
	_, err, _ := ct.maintainGroup.Do("maintain", func() (interface{}, error) {
		var first error
		for _, col := range ct.columns {
			mcol, ok := col.(maintainer)
			if !ok {
				continue
			}
			if err := mcol.Maintain(force, background); err != nil && first == nil {
				first = err
			}
		}
		return nil, first
	})
	return err
}

// Close closes every column's underlying dtable and returns the first
// error, if any.
func (ct *CTable) Close() error {
	var first error
	for _, col := range ct.columns {
		if err := col.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func columnIndex(names []string, name string) (int, error) {
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	return -1, base.Errorf(base.KindNotFound, "anvildb/ctable: no such column %q", name)
}

func sortedColumnSubset(names []string, subset []string) ([]int, error) {
	idxs := make([]int, 0, len(subset))
	for _, name := range subset {
		i, err := columnIndex(names, name)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for i := 1; i < len(idxs); i++ {
		if idxs[i] == idxs[i-1] {
			return nil, base.Errorf(base.KindInvalidArgument, "anvildb/ctable: column %q requested twice", names[idxs[i]])
		}
	}
	return idxs, nil
}
