// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package journal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/batchtracker"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/completer"
	"github.com/ava-labs/journal/journal/events"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/execution/kv"
	"github.com/ava-labs/journal/journal/journaltest"
	"github.com/ava-labs/journal/journal/network"
	"github.com/ava-labs/journal/journal/publisher"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

const (
	waitFor = 10 * time.Second
	tick    = 10 * time.Millisecond
)

// peerNetwork connects a journal to one peer.
type peerNetwork struct {
	connected atomic.Bool
	self      atomic.Pointer[Journal]
	peer      atomic.Pointer[Journal]
}

func (n *peerNetwork) RequestBlock(_ context.Context, blkID ids.ID) error {
	self, peer := n.self.Load(), n.peer.Load()
	if !n.connected.Load() || self == nil || peer == nil {
		return nil
	}
	blk, err := peer.Cache.Get(blkID)
	if err != nil {
		return nil
	}
	// Requests are made under the completer's lock, so responses arrive
	// asynchronously like responses from the wire.
	go func() {
		_ = self.SubmitBlock(context.Background(), blk)
	}()
	return nil
}

func (*peerNetwork) RequestBatchByTransactionID(context.Context, ids.ID) error {
	return nil
}

func (n *peerNetwork) BroadcastBlock(ctx context.Context, blk *block.Block) error {
	if peer := n.peer.Load(); n.connected.Load() && peer != nil {
		return peer.SubmitBlock(ctx, blk)
	}
	return nil
}

func (n *peerNetwork) BroadcastBatch(ctx context.Context, batch *block.Batch) error {
	if peer := n.peer.Load(); n.connected.Load() && peer != nil {
		return peer.SubmitBatch(ctx, batch)
	}
	return nil
}

func newTestNode(t *testing.T, net network.Network, genesisBatch *block.Batch) *Journal {
	j, err := New(
		Config{
			Completer: completer.Config{RetryInterval: 50 * time.Millisecond},
			Genesis:   []*block.Batch{genesisBatch},
		},
		memdb.New(),
		net,
		secp256k1.TestKeys()[0],
		nil,
		[]execution.Handler{&kv.Handler{}},
		trace.Noop,
		logging.NoLog{},
		prometheus.NewRegistry(),
	)
	require.NoError(t, err)
	return j
}

func startNode(t *testing.T, j *Journal) {
	require.NoError(t, j.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, j.Shutdown())
	})
}

func requireHeight(t *testing.T, j *Journal, height uint64) {
	require.Eventually(t, func() bool {
		return j.Chain.ChainHead().Height == height
	}, waitFor, tick)
}

func TestSingleNode(t *testing.T) {
	require := require.New(t)
	key := secp256k1.TestKeys()[0]
	j := newTestNode(t, network.NoOp{}, journaltest.PutBatch(t, key, "genesis", "single"))
	startNode(t, j)

	require.Zero(j.Chain.ChainHead().Height)
	require.ErrorIs(j.Start(context.Background()), errAlreadyStarted)

	deltas := j.Deltas.Subscribe([]byte("k"))
	commits := j.Events.Subscribe(events.BlockCommitType)

	batch := journaltest.PutBatch(t, key, "k", "v")
	require.NoError(j.SubmitLocalBatch(context.Background(), batch))
	status, _, err := j.BatchStatus(batch.ID())
	require.NoError(err)
	require.Equal(batchtracker.Pending, status)

	blk, err := j.BuildBlock(context.Background())
	require.NoError(err)
	requireHeight(t, j, 1)
	require.Equal(blk.ID(), j.Chain.ChainHead().ID())

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	statuses, err := j.Batches.Wait(ctx, batch.ID())
	require.NoError(err)
	require.Equal([]batchtracker.Status{batchtracker.Committed}, statuses)

	for _, txID := range batch.TxIDs() {
		receipt, err := j.Receipts.Get(txID)
		require.NoError(err)
		require.True(receipt.Success)
	}

	delta := <-deltas.Values()
	require.Equal(blk.ID(), delta.BlockID)
	require.Equal([]execution.StateChange{{Key: []byte("k"), Value: []byte("v")}}, delta.Changes)
	commit := <-commits.Values()
	require.Equal(blk.ID(), commit.BlockID)

	state, err := j.Executor.View(j.Chain.ChainHead().StateRoot)
	require.NoError(err)
	value, err := state.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), value)

	// The batch is no longer pending, so there is nothing left to publish.
	_, err = j.BuildBlock(context.Background())
	require.ErrorIs(err, publisher.ErrNoBatches)
}

func TestObserverOrder(t *testing.T) {
	j := newTestNode(t, network.NoOp{}, journaltest.PutBatch(t, secp256k1.TestKeys()[0], "genesis", "order"))
	require.Equal(t, []chain.Observer{
		j.Deltas,
		j.Events,
		j.Receipts,
		j.Batches,
		identityObserver{identities: j.Identities},
	}, j.observers())
}

func TestStartWithoutGenesis(t *testing.T) {
	j, err := New(
		Config{},
		memdb.New(),
		network.NoOp{},
		secp256k1.TestKeys()[0],
		nil,
		[]execution.Handler{&kv.Handler{}},
		trace.Noop,
		logging.NoLog{},
		prometheus.NewRegistry(),
	)
	require.NoError(t, err)
	require.ErrorIs(t, j.Start(context.Background()), errNoGenesis)
	require.ErrorIs(t, j.Shutdown(), errNotStarted)
}

func TestRestart(t *testing.T) {
	require := require.New(t)
	key := secp256k1.TestKeys()[0]
	db := memdb.New()
	genesisBatch := journaltest.PutBatch(t, key, "genesis", "restart")

	newJournal := func() *Journal {
		j, err := New(
			Config{Genesis: []*block.Batch{genesisBatch}},
			db,
			network.NoOp{},
			key,
			nil,
			[]execution.Handler{&kv.Handler{}},
			trace.Noop,
			logging.NoLog{},
			prometheus.NewRegistry(),
		)
		require.NoError(err)
		return j
	}

	j := newJournal()
	require.NoError(j.Start(context.Background()))
	require.NoError(j.SubmitLocalBatch(context.Background(), journaltest.PutBatch(t, key, "k", "v")))
	blk, err := j.BuildBlock(context.Background())
	require.NoError(err)
	requireHeight(t, j, 1)
	require.NoError(j.Shutdown())

	j = newJournal()
	required, err := j.Genesis.RequiresGenesis()
	require.NoError(err)
	require.False(required)
	require.NoError(j.Start(context.Background()))
	defer func() {
		require.NoError(j.Shutdown())
	}()
	require.Equal(blk.ID(), j.Chain.ChainHead().ID())
	require.Equal(blk.StateRoot, j.Executor.CommittedRoot())
}

func TestTwoNodes(t *testing.T) {
	require := require.New(t)
	key := secp256k1.TestKeys()[0]
	genesisBatch := journaltest.PutBatch(t, key, "genesis", "two nodes")

	netA := &peerNetwork{}
	netB := &peerNetwork{}
	a := newTestNode(t, netA, genesisBatch)
	b := newTestNode(t, netB, genesisBatch)
	netA.self.Store(a)
	netA.peer.Store(b)
	netB.self.Store(b)
	netB.peer.Store(a)
	startNode(t, a)
	startNode(t, b)
	require.Equal(a.Chain.ChainHead().ID(), b.Chain.ChainHead().ID())

	// While disconnected, blocks built by a don't reach b.
	for i := 0; i < 3; i++ {
		require.NoError(a.SubmitLocalBatch(context.Background(), journaltest.PutBatch(t, key, "k", string(rune('a'+i)))))
		_, err := a.BuildBlock(context.Background())
		require.NoError(err)
		requireHeight(t, a, uint64(i+1))
	}
	require.Zero(b.Chain.ChainHead().Height)

	// Once connected, b requests the missing ancestors of the next block.
	netA.connected.Store(true)
	netB.connected.Store(true)
	require.NoError(a.SubmitLocalBatch(context.Background(), journaltest.PutBatch(t, key, "k", "d")))
	_, err := a.BuildBlock(context.Background())
	require.NoError(err)
	requireHeight(t, a, 4)
	requireHeight(t, b, 4)
	require.Equal(a.Chain.ChainHead().ID(), b.Chain.ChainHead().ID())

	state, err := b.Executor.View(b.Chain.ChainHead().StateRoot)
	require.NoError(err)
	value, err := state.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("d"), value)
}
