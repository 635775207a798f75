// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package journal assembles the block pipeline of a node: network input goes
// through the completer, the validator and the chain controller, and the
// publisher builds new blocks on the resulting chain head.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/prefixdb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/batchtracker"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/blockcache"
	"github.com/ava-labs/journal/journal/blockstore"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/completer"
	"github.com/ava-labs/journal/journal/consensus"
	"github.com/ava-labs/journal/journal/consensus/devmode"
	"github.com/ava-labs/journal/journal/events"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/genesis"
	"github.com/ava-labs/journal/journal/identity"
	"github.com/ava-labs/journal/journal/network"
	"github.com/ava-labs/journal/journal/publisher"
	"github.com/ava-labs/journal/journal/receipts"
	"github.com/ava-labs/journal/journal/statedelta"
	"github.com/ava-labs/journal/journal/validator"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

var (
	receiptPrefix = []byte("receipt")
	deltaPrefix   = []byte("delta")

	errNoGenesis      = errors.New("chain is empty and no genesis batches are configured")
	errAlreadyStarted = errors.New("journal already started")
	errNotStarted     = errors.New("journal not started")
)

type Config struct {
	Cache     blockcache.Config
	Completer completer.Config
	Validator validator.Config
	Publisher publisher.Config

	// UndoDepth is how many committed state roots can be rolled back.
	UndoDepth         uint64
	IdentityCacheSize int
	// SubscriptionBufferSize is how far a state delta or event subscriber
	// may fall behind before it is closed.
	SubscriptionBufferSize int
	InvalidBatchCacheSize  int

	// Genesis is executed to create block 0 if the chain is empty.
	Genesis []*block.Batch
}

// Journal is safe for concurrent use.
type Journal struct {
	log logging.Logger

	Store      *blockstore.Store
	Cache      *blockcache.Cache
	Executor   *execution.Manager
	Identities *identity.Cache
	Engine     consensus.Engine
	Completer  *completer.Completer
	Validator  *validator.Validator
	Chain      *chain.Controller
	Publisher  *publisher.Publisher
	Genesis    *genesis.Controller
	Receipts   *receipts.Store
	Deltas     *statedelta.Processor
	Events     *events.Broadcaster
	Batches    *batchtracker.Tracker

	sender *publisher.NetworkSender

	lock   sync.Mutex
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New wires the journal over [db]. The block store and the committed state
// share [db] so that both are written in one batch. If [engine] is nil, blocks
// are produced and validated in dev mode.
func New(
	config Config,
	db database.Database,
	net network.Network,
	key *secp256k1.PrivateKey,
	engine consensus.Engine,
	handlers []execution.Handler,
	tracer trace.Tracer,
	log logging.Logger,
	reg prometheus.Registerer,
) (*Journal, error) {
	if config.UndoDepth == 0 {
		config.UndoDepth = execution.DefaultUndoDepth
	}
	reg = prometheus.WrapRegistererWithPrefix("journal_", reg)

	store := blockstore.New(db)
	executor, err := execution.NewManager(db, log, reg, config.UndoDepth, handlers...)
	if err != nil {
		return nil, fmt.Errorf("couldn't create execution manager: %w", err)
	}
	blockCache, err := blockcache.New(config.Cache, store, log, reg)
	if err != nil {
		return nil, fmt.Errorf("couldn't create block cache: %w", err)
	}
	identities := identity.NewCache(config.IdentityCacheSize)
	if engine == nil {
		engine = devmode.New(identities, key.PublicKey().Bytes())
	}

	comp, err := completer.New(config.Completer, net, blockCache, store, log, reg)
	if err != nil {
		return nil, fmt.Errorf("couldn't create completer: %w", err)
	}
	v, err := validator.New(config.Validator, blockCache, store, executor, engine, tracer, log, reg)
	if err != nil {
		return nil, fmt.Errorf("couldn't create validator: %w", err)
	}

	j := &Journal{
		log:        log,
		Store:      store,
		Cache:      blockCache,
		Executor:   executor,
		Identities: identities,
		Engine:     engine,
		Completer:  comp,
		Validator:  v,
		Genesis:    genesis.New(config.Genesis, store, executor, key, log),
		Receipts:   receipts.New(prefixdb.New(receiptPrefix, db)),
		Deltas:     statedelta.New(prefixdb.New(deltaPrefix, db), config.SubscriptionBufferSize, log),
		Events:     events.New(config.SubscriptionBufferSize, log),
		Batches:    batchtracker.New(store, config.InvalidBatchCacheSize),
		sender: &publisher.NetworkSender{
			Local:   comp,
			Network: net,
		},
	}

	j.Chain, err = chain.New(
		blockCache,
		store,
		v,
		executor,
		engine,
		log,
		reg,
		j.observers()...,
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't create chain controller: %w", err)
	}
	j.Publisher, err = publisher.New(config.Publisher, j.Chain, store, executor, engine, key, j.sender, log, reg)
	if err != nil {
		return nil, fmt.Errorf("couldn't create publisher: %w", err)
	}

	comp.SetOnBlockReceived(j.onBlockReceived)
	comp.SetOnBatchReceived(j.onBatchReceived)
	j.Publisher.SetOnBatchDropped(j.Batches.OnBatchInvalid)

	blockCache.RegisterInUse(comp.InUse)
	blockCache.RegisterInUse(v.InUse)
	blockCache.RegisterInUse(j.Chain.InUse)
	blockCache.SetOnEvict(j.Chain.OnEvict)
	return j, nil
}

// Start creates the genesis block if the chain is empty and then starts
// processing blocks and batches in the background.
func (j *Journal) Start(ctx context.Context) error {
	required, err := j.Genesis.RequiresGenesis()
	if err != nil {
		return err
	}
	if !required {
		return j.start(ctx)
	}
	if len(j.Genesis.Batches()) == 0 {
		return errNoGenesis
	}
	return j.Genesis.Start(ctx, j.start)
}

func (j *Journal) start(ctx context.Context) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.eg != nil {
		return errAlreadyStarted
	}
	if err := j.Chain.Initialize(); err != nil {
		return err
	}

	// The pipeline outlives the context Start was called with.
	ctx, j.cancel = context.WithCancel(context.WithoutCancel(ctx))
	j.eg, ctx = errgroup.WithContext(ctx)
	j.eg.Go(func() error {
		return j.Cache.Run(ctx)
	})
	j.eg.Go(func() error {
		return j.Completer.Run(ctx)
	})
	j.eg.Go(func() error {
		return j.Validator.Run(ctx)
	})
	j.eg.Go(func() error {
		return j.Chain.Run(ctx)
	})
	j.eg.Go(func() error {
		return j.Publisher.Run(ctx)
	})

	head := j.Chain.ChainHead()
	j.log.Info("journal started",
		zap.Stringer("headID", head.ID()),
		zap.Uint64("height", head.Height),
	)
	return nil
}

// Shutdown stops every component and returns the first error any of them
// failed with.
func (j *Journal) Shutdown() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.eg == nil {
		return errNotStarted
	}
	j.cancel()
	err := j.eg.Wait()
	j.Deltas.Close()
	j.Events.Close()
	j.log.Info("journal stopped")
	return err
}

// SubmitBlock accepts a block received from a peer.
func (j *Journal) SubmitBlock(ctx context.Context, blk *block.Block) error {
	if err := blk.Verify(); err != nil {
		return err
	}
	return j.Completer.SubmitBlock(ctx, blk)
}

// SubmitBatch accepts a batch received from a peer.
func (j *Journal) SubmitBatch(ctx context.Context, batch *block.Batch) error {
	if err := batch.Verify(); err != nil {
		return err
	}
	return j.Completer.SubmitBatch(ctx, batch)
}

// SubmitLocalBatch accepts a batch from a local client and broadcasts it.
func (j *Journal) SubmitLocalBatch(ctx context.Context, batch *block.Batch) error {
	if err := batch.Verify(); err != nil {
		return err
	}
	return j.sender.SubmitBatch(ctx, batch)
}

// BuildBlock builds and sends a block on the current head.
func (j *Journal) BuildBlock(ctx context.Context) (*block.Block, error) {
	return j.Publisher.BuildBlock(ctx)
}

// BatchStatus returns the status of [batchID].
func (j *Journal) BatchStatus(batchID ids.ID) (batchtracker.Status, string, error) {
	return j.Batches.Status(batchID)
}

func (j *Journal) onBlockReceived(blk *block.Block) {
	if err := j.Chain.QueueBlock(blk); err != nil {
		j.log.Error("couldn't queue block",
			zap.Stringer("blkID", blk.ID()),
			zap.Error(err),
		)
	}
}

func (j *Journal) onBatchReceived(batch *block.Batch) {
	j.Batches.OnBatchReceived(batch)
	if err := j.Publisher.QueueBatch(batch); err != nil {
		j.log.Error("couldn't queue batch",
			zap.Stringer("batchID", batch.ID()),
			zap.Error(err),
		)
	}
}

// observers returns the chain observers in notification order.
func (j *Journal) observers() []chain.Observer {
	return []chain.Observer{
		j.Deltas,
		j.Events,
		j.Receipts,
		j.Batches,
		identityObserver{identities: j.Identities},
	}
}

// identityObserver drops the memoized producer lists when the chain
// reorganizes.
type identityObserver struct {
	identities *identity.Cache
}

func (o identityObserver) OnChainUpdated(_ context.Context, update *chain.ChainUpdate) error {
	if update.Reorg() {
		o.identities.Flush()
	}
	return nil
}
