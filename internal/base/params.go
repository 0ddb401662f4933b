// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "strconv"

// Params is the engine's only configuration object: a nested map of
// scalar-typed leaves and sub-maps, grounded on the original source's
// params class (dtable_factory.cpp, index_factory.cpp) and used to build
// compositions like:
//
//	Params{
//	    "base": "managed",
//	    "base_config": Params{
//	        "base": "cache",
//	        "base_config": Params{"base": "simple", "cache_size": 1024},
//	    },
//	}
type Params map[string]interface{}

// String returns the string leaf at key, or def if absent or not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the integer leaf at key, or def if absent or not numeric.
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean leaf at key, or def if absent or not a bool.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Sub returns the nested Params at key, or an empty Params if absent or
// not a sub-map — composable factory configs (base_config, fastbase_config)
// read through this.
func (p Params) Sub(key string) Params {
	if v, ok := p[key]; ok {
		if sub, ok := v.(Params); ok {
			return sub
		}
		if m, ok := v.(map[string]interface{}); ok {
			return Params(m)
		}
	}
	return Params{}
}

// Has reports whether key is present, regardless of value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Defaultable is implemented by any component configuration that can fill
// in its own documented defaults before validation, matching the teacher's
// Options.EnsureDefaults() pattern (mem_table.go: "o = o.EnsureDefaults()").
type Defaultable interface {
	EnsureDefaults() Params
}
