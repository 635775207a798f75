// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnboundedDequeInitialCapGreaterThanMin(t *testing.T) {
	require := require.New(t)

	dIntf := NewUnboundedDeque[int](10)
	d, ok := dIntf.(*unboundedSliceDeque[int])
	require.True(ok)
	require.Empty(d.List())
	require.Zero(d.Len())
	require.Len(d.data, 10)

	d.PushLeft(1)
	require.Equal([]int{1}, d.List())

	got, ok := d.PopLeft()
	require.True(ok)
	require.Equal(1, got)

	_, ok = d.PopLeft()
	require.False(ok)
	_, ok = d.PopRight()
	require.False(ok)
}

func TestUnboundedDequeGrowth(t *testing.T) {
	require := require.New(t)

	d := NewUnboundedDeque[int](2)
	for i := 0; i < 5; i++ {
		d.PushRight(i)
	}
	d.PushLeft(-1)
	require.Equal([]int{-1, 0, 1, 2, 3, 4}, d.List())
	require.Equal(6, d.Len())

	got, ok := d.Index(3)
	require.True(ok)
	require.Equal(2, got)
	_, ok = d.Index(6)
	require.False(ok)

	got, ok = d.PeekRight()
	require.True(ok)
	require.Equal(4, got)
	got, ok = d.PeekLeft()
	require.True(ok)
	require.Equal(-1, got)
}

func TestUnboundedDequeWrapAround(t *testing.T) {
	require := require.New(t)

	d := NewUnboundedDeque[int](4)
	for i := 0; i < 3; i++ {
		d.PushRight(i)
	}
	_, _ = d.PopLeft()
	_, _ = d.PopLeft()
	d.PushRight(3)
	d.PushRight(4)
	d.PushRight(5)
	require.Equal([]int{2, 3, 4, 5}, d.List())

	got, ok := d.PopRight()
	require.True(ok)
	require.Equal(5, got)
	got, ok = d.PopLeft()
	require.True(ok)
	require.Equal(2, got)
	require.Equal([]int{3, 4}, d.List())
}
