// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package anvil

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/ctable"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/journal"
	"github.com/anvildb/anvil/internal/registry"

	_ "github.com/anvildb/anvil/internal/managed" // registers the "managed" class
)

const systemJournalName = "system.journal"

// Options configures a DB at Open time. The zero Options is valid and
// selects defaults: a nil Logger becomes NoopLogger.
type Options struct {
	// Logger receives the store's diagnostic output. Defaults to
	// NoopLogger when nil.
	Logger Logger
}

func (o *Options) ensureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.Logger == nil {
		o.Logger = NoopLogger
	}
	return o
}

// TableConfig configures a single managed dtable created or opened
// through DB.CreateTable/OpenTable. Class defaults to "managed" when
// empty; Params defaults to an empty base.Params (every field of
// managed.Config has a documented zero-value default).
type TableConfig struct {
	Class  string
	Params Params
}

func (c TableConfig) classOrDefault() string {
	if c.Class == "" {
		return "managed"
	}
	return c.Class
}

// DB roots a store at a directory: one shared system journal and listener
// id source (per internal/journal's process-wide-sharing contract),
// opened once and handed to every table and column table created or
// opened beneath it. This mirrors pebble.Open's role as the single entry
// point a caller needs for a directory of sorted runs.
type DB struct {
	dir     string
	log     Logger
	journal *journal.Journal
	ids     *journal.IDSource

	mu      sync.Mutex
	tables  map[string]dtableCloser
	columns map[string]*ctable.CTable
	closed  bool
}

type dtableCloser interface {
	Close() error
}

// Open roots a store at dirname, creating it if it does not already
// exist, and opens the shared system journal and id source every table
// and column table within it will draw from.
func Open(dirname string, opts *Options) (*DB, error) {
	opts = opts.ensureDefaults()
	if err := os.MkdirAll(dirname, 0o755); err != nil {
		return nil, base.Wrap(base.KindIoError, err, "anvildb: creating store directory %q", dirname)
	}
	j, err := journal.Open(dirname, systemJournalName)
	if err != nil {
		return nil, err
	}
	ids, err := journal.OpenIDSource(dirname)
	if err != nil {
		j.Close()
		return nil, err
	}
	return &DB{
		dir:     dirname,
		log:     opts.Logger,
		journal: j,
		ids:     ids,
		tables:  make(map[string]dtableCloser),
		columns: make(map[string]*ctable.CTable),
	}, nil
}

func (db *DB) tableDir(name string) string { return filepath.Join(db.dir, name) }

// CreateTable creates a new managed dtable named name, rooted under the
// store's directory.
func (db *DB) CreateTable(name string, keyType KeyType, cfg TableConfig) error {
	ctx := registry.Context{
		Dir:      db.dir,
		Name:     name,
		Params:   cfg.Params,
		Journal:  db.journal,
		IDSource: db.ids,
		Logger:   db.log,
	}
	return registry.Default.Create(cfg.classOrDefault(), ctx, keyType)
}

// OpenTable opens a previously-created managed dtable named name. The
// returned value satisfies dtable.DTable; callers that need the full
// managed surface (Maintain, transactions) should import
// internal/managed directly, or use the operations DB exposes for the
// common paths.
func (db *DB) OpenTable(name string, cfg TableConfig) (dtable.DTable, error) {
	ctx := registry.Context{
		Dir:      db.dir,
		Name:     name,
		Params:   cfg.Params,
		Journal:  db.journal,
		IDSource: db.ids,
		Logger:   db.log,
	}
	dt, err := registry.Default.Open(cfg.classOrDefault(), ctx)
	if err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[name] = dt
	return dt, nil
}

// CreateColumnTable creates a new ctable named name, with the columns
// and per-column classes described by cfg.
func (db *DB) CreateColumnTable(name string, keyType KeyType, cfg ctable.Config) error {
	return ctable.Create(db.tableDir(name), keyType, cfg, db.journal, db.ids, db.log)
}

// OpenColumnTable opens a previously-created ctable named name.
func (db *DB) OpenColumnTable(name string, cfg ctable.Config) (*ctable.CTable, error) {
	ct, err := ctable.Open(db.tableDir(name), cfg, db.journal, db.ids, db.log)
	if err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.columns[name] = ct
	return ct, nil
}

// Close closes every table and column table opened through this DB, then
// the shared system journal last — per internal/managed's Close doc
// comment, the journal must outlive every managed dtable writing through
// it, so it is this DB, and only this DB, that closes it.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, t := range db.tables {
		record(t.Close())
	}
	for _, ct := range db.columns {
		record(ct.Close())
	}
	record(db.journal.Close())
	return first
}
