// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package managed

import (
	"path/filepath"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/registry"
)

func init() {
	registry.Default.Register("managed", classFactory{})
}

// classFactory adapts Open/create-on-first-use to the registry.Factory
// interface, letting "managed" appear as the base (or fastbase) class of
// another composed dtable — e.g. a cache wrapping a managed dtable, or a
// ctable column, per spec.md §4.6's composition model. It is registered
// from this package rather than internal/registry itself so the registry
// never needs to import internal/managed (see internal/registry's doc
// comment on avoiding the cycle).
type classFactory struct{}

// Create initializes an empty managed dtable at ctx.Dir/ctx.Name and
// immediately closes it — the on-disk state (metadata file, run
// directory) is all Create is responsible for; Open reopens it for use.
func (classFactory) Create(ctx registry.Context, keyType base.KeyType) error {
	dir := filepath.Join(ctx.Dir, ctx.Name)
	m, err := Open(dir, keyType, ctx.Params, ctx.Journal, ctx.IDSource, ctx.Logger)
	if err != nil {
		return err
	}
	return m.Close()
}

// Open reopens an existing managed dtable, recovering its key type from
// the persisted metadata since registry.Factory.Open carries no key type
// of its own.
func (classFactory) Open(ctx registry.Context) (dtable.DTable, error) {
	dir := filepath.Join(ctx.Dir, ctx.Name)
	meta, err := readMetadata(dir)
	if err != nil {
		return nil, err
	}
	return Open(dir, meta.keyType, ctx.Params, ctx.Journal, ctx.IDSource, ctx.Logger)
}
