// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package registry

import (
	"path/filepath"

	"github.com/anvildb/anvil/internal/base"
	"github.com/anvildb/anvil/internal/dtable"
	"github.com/anvildb/anvil/internal/memtable"
)

func init() {
	Default.Register("simple", simpleFactory{})
	Default.Register("array", arrayFactory{})
	Default.Register("cache", cacheFactory{})
}

func compressionFromParams(p base.Params) dtable.Compression {
	switch p.String("compression", "snappy") {
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

// simpleFactory adapts internal/dtable's generic sorted-run file to the
// registry's Factory interface. Create produces an empty run (the legal
// "empty digest" boundary case from spec.md §8) since the registry's
// Create signature has no source/shadow iterators to stream from —
// internal/managed calls dtable.CreateSimple directly for real digest and
// combine output, bypassing the registry entirely (see writeRun in
// internal/managed/run.go).
type simpleFactory struct{}

func (simpleFactory) Create(ctx Context, keyType base.KeyType) error {
	empty, err := memtable.New(keyType).Iterator()
	if err != nil {
		return err
	}
	path := filepath.Join(ctx.Dir, ctx.Name)
	return dtable.CreateSimple(path, keyType, nil, empty, empty, false, false, compressionFromParams(ctx.Params))
}

func (simpleFactory) Open(ctx Context) (dtable.DTable, error) {
	path := filepath.Join(ctx.Dir, ctx.Name)
	return dtable.OpenSimple(path, nil)
}

// arrayFactory adapts the dense-array sorted-run file.
type arrayFactory struct{}

func (arrayFactory) Create(ctx Context, keyType base.KeyType) error {
	if keyType != base.KeyTypeUint32 {
		return base.Errorf(base.KindInvalidArgument, "anvildb/registry: array class requires uint32 keys")
	}
	arraySize := uint32(ctx.Params.Int("array_size", dtable.DefaultArrayValueCap))
	minKey := uint32(ctx.Params.Int("min_key", 0))
	empty, err := memtable.New(keyType).Iterator()
	if err != nil {
		return err
	}
	path := filepath.Join(ctx.Dir, ctx.Name)
	return dtable.CreateArray(path, minKey, arraySize, empty, empty, false, false,
		compressionFromParams(ctx.Params), dtable.DefaultArrayValueCap)
}

func (arrayFactory) Open(ctx Context) (dtable.DTable, error) {
	path := filepath.Join(ctx.Dir, ctx.Name)
	return dtable.OpenArray(path)
}

// cacheFactory wraps whatever dtable class the "base" param names
// (configured by base_config) with a fixed-capacity FIFO cache, per
// spec.md §4.2/§4.6's composition example.
type cacheFactory struct{}

func (cacheFactory) Create(ctx Context, keyType base.KeyType) error {
	baseClass := ctx.Params.String("base", "simple")
	baseCtx := ctx
	baseCtx.Params = ctx.Params.Sub("base_config")
	return Default.Create(baseClass, baseCtx, keyType)
}

func (cacheFactory) Open(ctx Context) (dtable.DTable, error) {
	baseClass := ctx.Params.String("base", "simple")
	baseCtx := ctx
	baseCtx.Params = ctx.Params.Sub("base_config")
	underlying, err := Default.Open(baseClass, baseCtx)
	if err != nil {
		return nil, err
	}
	capacity := ctx.Params.Int("cache_size", 1024)
	return dtable.NewCache(underlying, capacity), nil
}
