// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package journaltest provides a committed genesis and block builders for
// tests of the journal components.
package journaltest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/blockcache"
	"github.com/ava-labs/journal/journal/blockstore"
	"github.com/ava-labs/journal/journal/consensus/devmode"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/execution/kv"
	"github.com/ava-labs/journal/journal/genesis"
	"github.com/ava-labs/journal/journal/identity"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/timer/mockable"
)

var nonce atomic.Uint64

// Env is a journal with a committed genesis block.
type Env struct {
	DB         database.Database
	Store      *blockstore.Store
	Cache      *blockcache.Cache
	Manager    *execution.Manager
	Identities *identity.Cache
	Engine     *devmode.Engine
	Clock      *mockable.Clock
	Key        *secp256k1.PrivateKey
	Genesis    *block.Block

	// builder computes state roots of blocks that are not validated yet.
	builder *execution.Manager
	// roots holds the roots sealed in [builder].
	roots map[ids.ID]struct{}
}

// NewEnv returns an environment with a new random genesis.
func NewEnv(t testing.TB) *Env {
	return NewEnvWithGenesis(t, PutBatch(t, secp256k1.TestKeys()[0], "genesis", ids.GenerateTestID().String()))
}

// NewEnvWithGenesis returns an environment whose genesis block carries
// [genesisBatch]. Environments created with the same batch share the same
// genesis block.
func NewEnvWithGenesis(t testing.TB, genesisBatch *block.Batch) *Env {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_000_000, 0))

	db := memdb.New()
	store := blockstore.New(db)
	c, err := blockcache.New(blockcache.Config{Clock: clock}, store, logging.NoLog{}, prometheus.NewRegistry())
	require.NoError(err)
	manager, err := execution.NewManager(db, logging.NoLog{}, prometheus.NewRegistry(), execution.DefaultUndoDepth, &kv.Handler{})
	require.NoError(err)
	builder, err := execution.NewManager(memdb.New(), logging.NoLog{}, prometheus.NewRegistry(), execution.DefaultUndoDepth, &kv.Handler{})
	require.NoError(err)

	key := secp256k1.TestKeys()[0]
	identities := identity.NewCache(0)
	e := &Env{
		DB:         db,
		Store:      store,
		Cache:      c,
		Manager:    manager,
		Identities: identities,
		Engine:     devmode.New(identities, key.PublicKey().Bytes()),
		Clock:      clock,
		Key:        key,
		builder:    builder,
		roots:      make(map[ids.ID]struct{}),
	}

	genesisController := genesis.New([]*block.Batch{genesisBatch}, store, manager, key, logging.NoLog{})
	require.NoError(genesisController.Start(context.Background(), func(context.Context) error {
		return nil
	}))
	e.Genesis, err = store.ChainHead()
	require.NoError(err)
	require.Equal(e.Genesis.StateRoot, e.root(t, ids.Empty, genesisBatch))
	return e
}

// Build signs a block on [parent] with the declared state root that results
// from executing [batches].
func (e *Env) Build(t testing.TB, parent *block.Block, batches ...*block.Batch) *block.Block {
	return e.BuildWithRoot(t, parent, e.root(t, parent.StateRoot, batches...), batches...)
}

// BuildWithRoot signs a block on [parent] declaring [root].
func (e *Env) BuildWithRoot(t testing.TB, parent *block.Block, root ids.ID, batches ...*block.Batch) *block.Block {
	blk, err := block.Build(parent.ID(), parent.Height+1, root, devmode.Payload, batches, e.Key)
	require.NoError(t, err)
	return blk
}

// Chain builds [length] blocks on [parent], each carrying one new batch.
func (e *Env) Chain(t testing.TB, parent *block.Block, length int) []*block.Block {
	chain := make([]*block.Block, length)
	for i := range chain {
		chain[i] = e.Build(t, parent, PutBatch(t, e.Key, "height", string(rune('a'+i))))
		parent = chain[i]
	}
	return chain
}

func (e *Env) root(t testing.TB, baseRoot ids.ID, batches ...*block.Batch) ids.ID {
	require := require.New(t)

	contextID, err := e.builder.CreateContext(baseRoot)
	require.NoError(err)
	for _, batch := range batches {
		_, err := e.builder.Execute(context.Background(), contextID, batch)
		require.NoError(err)
	}
	root, _, err := e.builder.Seal(contextID)
	require.NoError(err)
	if _, ok := e.roots[root]; ok {
		e.builder.Discard(contextID)
	}
	e.roots[root] = struct{}{}
	return root
}

// PutBatch returns a batch writing the key/value pairs [kvs], one
// transaction per pair.
func PutBatch(t testing.TB, key *secp256k1.PrivateKey, kvs ...string) *block.Batch {
	require := require.New(t)

	txs := make([]*block.Transaction, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		tx, err := kv.NewPut(key, nonce.Add(1), []byte(kvs[i]), []byte(kvs[i+1]))
		require.NoError(err)
		txs = append(txs, tx)
	}
	batch, err := block.NewBatch(key, txs)
	require.NoError(err)
	return batch
}
