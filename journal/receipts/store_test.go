// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receipts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/journaltest"
)

func blockUpdate(blk *block.Block) *chain.BlockUpdate {
	results := make([]*execution.BatchResult, len(blk.Batches))
	for i, batch := range blk.Batches {
		results[i] = &execution.BatchResult{
			BatchID: batch.ID(),
			Valid:   true,
		}
		for _, txID := range batch.TxIDs() {
			results[i].Receipts = append(results[i].Receipts, &execution.Receipt{
				TxID:    txID,
				Success: true,
				Data:    [][]byte{{byte(blk.Height)}},
			})
		}
	}
	return &chain.BlockUpdate{
		Block:   blk,
		Results: results,
	}
}

func TestOnChainUpdated(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	s := New(memdb.New())

	shared := journaltest.PutBatch(t, env.Key, "shared", "1")
	old := env.Build(t, env.Genesis, shared, journaltest.PutBatch(t, env.Key, "old", "1"))
	require.NoError(s.OnChainUpdated(context.Background(), &chain.ChainUpdate{
		Head:      old,
		Committed: []*chain.BlockUpdate{blockUpdate(old)},
	}))
	for _, txID := range old.TxIDs() {
		receipt, err := s.Get(txID)
		require.NoError(err)
		require.Equal(txID, receipt.TxID)
		require.True(receipt.Success)
	}

	fork1 := env.Build(t, env.Genesis, shared)
	fork2 := env.Build(t, fork1)
	require.NoError(s.OnChainUpdated(context.Background(), &chain.ChainUpdate{
		Head:        fork2,
		Committed:   []*chain.BlockUpdate{blockUpdate(fork1), blockUpdate(fork2)},
		Uncommitted: []*block.Block{old},
	}))

	for _, txID := range shared.TxIDs() {
		receipt, err := s.Get(txID)
		require.NoError(err)
		require.Equal([][]byte{{1}}, receipt.Data)
	}
	for _, txID := range old.Batches[1].TxIDs() {
		has, err := s.Has(txID)
		require.NoError(err)
		require.False(has)
		_, err = s.Get(txID)
		require.ErrorIs(err, database.ErrNotFound)
	}
}
