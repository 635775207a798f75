// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package batchtracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/execution/kv"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/set"
)

type testStore struct {
	committed set.Set[ids.ID]
}

func (s *testStore) HasBatch(batchID ids.ID) (bool, error) {
	return s.committed.Contains(batchID), nil
}

func testBatch(t *testing.T) *block.Batch {
	require := require.New(t)

	key := secp256k1.TestKeys()[0]
	k := ids.GenerateTestID()
	tx, err := kv.NewPut(key, 1, k[:], []byte("value"))
	require.NoError(err)
	batch, err := block.NewBatch(key, []*block.Transaction{tx})
	require.NoError(err)
	return batch
}

func testBlock(t *testing.T, batchIDs ...ids.ID) *block.Block {
	blk, err := block.Build(ids.GenerateTestID(), 1, ids.GenerateTestID(), nil, nil, secp256k1.TestKeys()[0])
	require.NoError(t, err)
	blk.BatchIDs = batchIDs
	return blk
}

func requireStatus(t *testing.T, tracker *Tracker, batchID ids.ID, expected Status) {
	status, _, err := tracker.Status(batchID)
	require.NoError(t, err)
	require.Equal(t, expected, status)
}

func TestStatus(t *testing.T) {
	require := require.New(t)
	store := &testStore{committed: set.Set[ids.ID]{}}
	tracker := New(store, 0)

	var (
		committed = ids.GenerateTestID()
		dropped   = ids.GenerateTestID()
		pending   = ids.GenerateTestID()
	)
	store.committed.Add(committed)
	tracker.pending.Add(dropped, pending)
	tracker.OnBatchInvalid(dropped, "execution failed")

	requireStatus(t, tracker, committed, Committed)
	requireStatus(t, tracker, pending, Pending)
	requireStatus(t, tracker, ids.GenerateTestID(), Unknown)

	status, reason, err := tracker.Status(dropped)
	require.NoError(err)
	require.Equal(Invalid, status)
	require.Equal("execution failed", reason)
}

func TestOnChainUpdated(t *testing.T) {
	store := &testStore{committed: set.Set[ids.ID]{}}
	tracker := New(store, 0)

	var (
		a = ids.GenerateTestID()
		b = ids.GenerateTestID()
		c = ids.GenerateTestID()
	)
	tracker.pending.Add(a, b, c)

	old := testBlock(t, a, b)
	store.committed.Add(a, b)
	require.NoError(t, tracker.OnChainUpdated(context.Background(), &chain.ChainUpdate{
		Head:      old,
		Committed: []*chain.BlockUpdate{{Block: old}},
	}))
	requireStatus(t, tracker, a, Committed)
	requireStatus(t, tracker, c, Pending)

	winner := testBlock(t, b, c)
	store.committed.Remove(a)
	store.committed.Add(c)
	require.NoError(t, tracker.OnChainUpdated(context.Background(), &chain.ChainUpdate{
		Head:        winner,
		Committed:   []*chain.BlockUpdate{{Block: winner}},
		Uncommitted: []*block.Block{old},
	}))
	requireStatus(t, tracker, a, Pending)
	requireStatus(t, tracker, b, Committed)
	requireStatus(t, tracker, c, Committed)
}

func TestWait(t *testing.T) {
	require := require.New(t)
	store := &testStore{committed: set.Set[ids.ID]{}}
	tracker := New(store, 0)

	committed := testBatch(t)
	dropped := testBatch(t)
	tracker.OnBatchReceived(committed)
	tracker.OnBatchReceived(dropped)
	store.committed.Add(committed.ID())

	type waitResult struct {
		statuses []Status
		err      error
	}
	done := make(chan waitResult)
	go func() {
		statuses, err := tracker.Wait(context.Background(), committed.ID(), dropped.ID())
		done <- waitResult{statuses, err}
	}()

	tracker.OnBatchInvalid(dropped.ID(), "duplicate transaction")
	blk := testBlock(t, committed.ID())
	require.NoError(tracker.OnChainUpdated(context.Background(), &chain.ChainUpdate{
		Head:      blk,
		Committed: []*chain.BlockUpdate{{Block: blk}},
	}))

	result := <-done
	require.NoError(result.err)
	require.Equal([]Status{Committed, Invalid}, result.statuses)
}

func TestWaitCanceled(t *testing.T) {
	require := require.New(t)
	tracker := New(&testStore{committed: set.Set[ids.ID]{}}, 0)

	batch := testBatch(t)
	tracker.OnBatchReceived(batch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	statuses, err := tracker.Wait(ctx, batch.ID())
	require.ErrorIs(err, context.Canceled)
	require.Equal([]Status{Pending}, statuses)
}
