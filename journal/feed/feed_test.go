// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package feed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/utils/logging"
)

func even(v int) (int, bool) {
	return v, v%2 == 0
}

func TestSend(t *testing.T) {
	require := require.New(t)
	f := New[int]("test", 4, logging.NoLog{})

	all := f.Subscribe(nil)
	evens := f.Subscribe(even)

	require.Equal(2, f.Send(2))
	require.Equal(1, f.Send(3))
	require.Equal(2, <-all.Values())
	require.Equal(3, <-all.Values())
	require.Equal(2, <-evens.Values())
	require.Empty(evens.Values())
}

func TestSlowSubscriberIsClosed(t *testing.T) {
	require := require.New(t)
	f := New[int]("test", 1, logging.NoLog{})

	sub := f.Subscribe(nil)
	require.Equal(1, f.Send(1))
	require.Zero(f.Send(2))
	require.Zero(f.Len())

	v, ok := <-sub.Values()
	require.True(ok)
	require.Equal(1, v)
	_, ok = <-sub.Values()
	require.False(ok)

	// Closing a removed subscription does nothing.
	sub.Close()
}

func TestClose(t *testing.T) {
	require := require.New(t)
	f := New[int]("test", 1, logging.NoLog{})

	first := f.Subscribe(nil)
	second := f.Subscribe(nil)
	first.Close()
	require.Equal(1, f.Len())

	f.Close()
	require.Zero(f.Len())
	_, ok := <-second.Values()
	require.False(ok)
}
