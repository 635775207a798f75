// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lru

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/cache/cachetest"
	"github.com/ava-labs/journal/ids"
)

func TestCache(t *testing.T) {
	for _, test := range cachetest.Tests {
		c := NewCache[ids.ID, int64](test.Size)
		test.Func(t, c)
	}
}

func TestCacheEviction(t *testing.T) {
	require := require.New(t)

	evicted := []ids.ID{}
	c := NewCacheWithOnEvict(2, func(id ids.ID, _ int64) {
		evicted = append(evicted, id)
	})

	id1, id2, id3 := ids.ID{1}, ids.ID{2}, ids.ID{3}
	c.Put(id1, 1)
	c.Put(id2, 2)
	c.Put(id1, 1) // refreshing doesn't evict
	require.Empty(evicted)

	c.Put(id3, 3)
	require.Equal([]ids.ID{id2}, evicted)
	require.InDelta(1.0, c.PortionFilled(), 0)

	c.Flush()
	require.Equal([]ids.ID{id2, id1, id3}, evicted)
}
