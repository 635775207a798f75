// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metercacher

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/cache/cachetest"
	"github.com/ava-labs/journal/cache/lru"
	"github.com/ava-labs/journal/ids"
)

func TestInterface(t *testing.T) {
	for _, test := range cachetest.Tests {
		c, err := New[ids.ID, int64]("", prometheus.NewRegistry(), lru.NewCache[ids.ID, int64](test.Size))
		require.NoError(t, err)
		test.Func(t, c)
	}
}

func TestHitMiss(t *testing.T) {
	require := require.New(t)

	c, err := New[ids.ID, int64]("verdicts", prometheus.NewRegistry(), lru.NewCache[ids.ID, int64](4))
	require.NoError(err)

	id := ids.GenerateTestID()
	_, found := c.Get(id)
	require.False(found)
	c.Put(id, 1)
	_, found = c.Get(id)
	require.True(found)

	require.InDelta(1.0, testutil.ToFloat64(c.metrics.hit), 0)
	require.InDelta(1.0, testutil.ToFloat64(c.metrics.miss), 0)
	require.InDelta(1.0, testutil.ToFloat64(c.metrics.len), 0)
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New[ids.ID, int64]("dup", reg, lru.NewCache[ids.ID, int64](1))
	require.NoError(t, err)
	_, err = New[ids.ID, int64]("dup", reg, lru.NewCache[ids.ID, int64](1))
	require.Error(t, err)
}
