// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

func TestOnChainUpdated(t *testing.T) {
	require := require.New(t)
	b := New(0, logging.NoLog{})

	all := b.Subscribe()
	commits := b.Subscribe(BlockCommitType)
	transfers := b.Subscribe("transfer")

	blk, err := block.Build(ids.GenerateTestID(), 3, ids.GenerateTestID(), nil, nil, secp256k1.TestKeys()[0])
	require.NoError(err)
	transfer := execution.Event{
		Type:       "transfer",
		Attributes: []execution.Attribute{{Key: "amount", Value: "5"}},
	}
	update := &chain.ChainUpdate{
		Head: blk,
		Committed: []*chain.BlockUpdate{{
			Block: blk,
			Results: []*execution.BatchResult{{
				Valid: true,
				Receipts: []*execution.Receipt{
					{Success: true, Events: []execution.Event{transfer}},
					{Success: true},
				},
			}},
		}},
	}
	require.NoError(b.OnChainUpdated(context.Background(), update))

	commit := CommitEvent(blk)
	require.Equal(&BlockEvents{
		BlockID: blk.ID(),
		Events:  []execution.Event{commit, transfer},
	}, <-all.Values())
	require.Equal([]execution.Event{commit}, (<-commits.Values()).Events)
	require.Equal([]execution.Event{transfer}, (<-transfers.Values()).Events)

	require.Equal([]execution.Attribute{
		{Key: BlockIDAttribute, Value: blk.ID().String()},
		{Key: HeightAttribute, Value: "3"},
		{Key: StateRootAttribute, Value: blk.StateRoot.String()},
		{Key: PreviousBlockIDAttribute, Value: blk.ParentID.String()},
	}, commit.Attributes)

	// A block without transfers isn't sent to the transfer subscriber.
	update.Committed[0].Results = nil
	require.NoError(b.OnChainUpdated(context.Background(), update))
	require.Len(commits.Values(), 1)
	require.Empty(transfers.Values())

	b.Close()
	_, ok := <-transfers.Values()
	require.False(ok)
}
