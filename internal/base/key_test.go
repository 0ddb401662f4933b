// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareUint32(t *testing.T) {
	a, b := NewUint32Key(1), NewUint32Key(2)
	require.Negative(t, Compare(nil, a, b))
	require.Positive(t, Compare(nil, b, a))
	require.Zero(t, Compare(nil, a, a))
}

func TestCompareDouble(t *testing.T) {
	a, b := NewDoubleKey(1.5), NewDoubleKey(2.5)
	require.Negative(t, Compare(nil, a, b))
	require.Positive(t, Compare(nil, b, a))
}

func TestCompareString(t *testing.T) {
	a, b := NewStringKey("alpha"), NewStringKey("beta")
	require.Negative(t, Compare(nil, a, b))
	require.Zero(t, Compare(nil, a, NewStringKey("alpha")))
}

func TestCompareBlobUsesDefaultComparatorWhenNil(t *testing.T) {
	a, b := NewBlobKey([]byte("aa")), NewBlobKey([]byte("ab"))
	require.Negative(t, Compare(nil, a, b))
}

func TestCompareBlobUsesSuppliedComparator(t *testing.T) {
	a, b := NewBlobKey([]byte("aa")), NewBlobKey([]byte("ab"))
	require.Zero(t, Compare(reverseLenComparator{}, a, b))
}

type reverseLenComparator struct{}

func (reverseLenComparator) Name() string           { return "reverse-len" }
func (reverseLenComparator) Compare(a, b []byte) int { return len(a) - len(b) }

func TestComparePanicsOnMismatchedTypes(t *testing.T) {
	require.Panics(t, func() {
		Compare(nil, NewUint32Key(1), NewStringKey("x"))
	})
}

func TestValidateType(t *testing.T) {
	require.NoError(t, ValidateType(NewUint32Key(1), KeyTypeUint32))
	err := ValidateType(NewStringKey("x"), KeyTypeUint32)
	require.Error(t, err)
	require.True(t, Is(err, KindInvalidArgument))
}

func TestKeyAccessors(t *testing.T) {
	require.Equal(t, uint32(7), NewUint32Key(7).Uint32())
	require.Equal(t, 3.14, NewDoubleKey(3.14).Double())
	require.Equal(t, "hi", NewStringKey("hi").String())
	require.Equal(t, []byte("blob"), NewBlobKey([]byte("blob")).Blob())
}
