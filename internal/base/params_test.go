// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamsStringDefault(t *testing.T) {
	p := Params{"base": "managed"}
	require.Equal(t, "managed", p.String("base", "simple"))
	require.Equal(t, "simple", p.String("missing", "simple"))
	require.Equal(t, "fallback", Params{"base": 7}.String("base", "fallback"))
}

func TestParamsIntCoercions(t *testing.T) {
	p := Params{
		"a": 1,
		"b": int64(2),
		"c": float64(3),
		"d": "4",
		"e": "not a number",
	}
	require.Equal(t, 1, p.Int("a", 0))
	require.Equal(t, 2, p.Int("b", 0))
	require.Equal(t, 3, p.Int("c", 0))
	require.Equal(t, 4, p.Int("d", 0))
	require.Equal(t, 99, p.Int("e", 99))
	require.Equal(t, 99, p.Int("missing", 99))
}

func TestParamsBool(t *testing.T) {
	p := Params{"on": true}
	require.True(t, p.Bool("on", false))
	require.False(t, p.Bool("missing", false))
	require.True(t, Params{"on": "yes"}.Bool("on", true))
}

func TestParamsSub(t *testing.T) {
	p := Params{"base_config": Params{"cache_size": 1024}}
	sub := p.Sub("base_config")
	require.Equal(t, 1024, sub.Int("cache_size", 0))

	rawMap := Params{"other": map[string]interface{}{"x": "y"}}
	require.Equal(t, "y", rawMap.Sub("other").String("x", ""))

	require.Empty(t, p.Sub("missing"))
}

func TestParamsHas(t *testing.T) {
	p := Params{"present": nil}
	require.True(t, p.Has("present"))
	require.False(t, p.Has("absent"))
}
