// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package identity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
)

type countingState struct {
	values map[string][]byte
	reads  int
}

func (s *countingState) Get(key []byte) ([]byte, error) {
	s.reads++
	value, ok := s.values[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return value, nil
}

func TestEncodeDecodeProducers(t *testing.T) {
	require := require.New(t)

	signers := [][]byte{{1, 2, 3}, {4}}
	decoded, err := DecodeProducers(EncodeProducers(signers))
	require.NoError(err)
	require.Equal(signers, decoded)

	_, err = DecodeProducers(append(EncodeProducers(signers), 0))
	require.ErrorIs(err, errTrailingBytes)
}

func TestIsAllowedIsMemoizedPerRoot(t *testing.T) {
	require := require.New(t)

	c := NewCache(0)
	root := ids.GenerateTestID()
	state := &countingState{
		values: map[string][]byte{
			string(ProducersKey): EncodeProducers([][]byte{{1}}),
		},
	}

	allowed, err := c.IsAllowed(root, state, []byte{1})
	require.NoError(err)
	require.True(allowed)
	allowed, err = c.IsAllowed(root, state, []byte{2})
	require.NoError(err)
	require.False(allowed)
	require.Equal(1, state.reads)

	c.Flush()
	_, err = c.IsAllowed(root, state, []byte{1})
	require.NoError(err)
	require.Equal(2, state.reads)
}

func TestUnsetListAllowsEveryone(t *testing.T) {
	require := require.New(t)

	allowed, err := NewCache(0).IsAllowed(ids.GenerateTestID(), &countingState{}, []byte{9})
	require.NoError(err)
	require.True(allowed)
}
