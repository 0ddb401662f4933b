// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package anvil is a layered, log-structured key/value store core: an
// immutable sorted key→value map on disk (dtable), an overlay that
// composes several of them into one logical view, a managed dtable that
// couples an in-memory write buffer, a shared journal, and a list of
// on-disk runs under a digest/combine/maintain policy, and a columnar
// ctable view made of several managed dtables sharing a row key.
//
// DB is the entry point: Open roots a store at a directory, and Table/
// ColumnTable name individual dtables and ctables within it, each backed
// by a class registered in internal/registry (typically "managed").
package anvil
