// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package publisher builds candidate blocks on the chain head out of the
// pending batch pool.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/consensus"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/linked"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/set"
)

const DefaultMaxBatchesPerBlock = 100

var (
	ErrNoBatches = errors.New("no batches to publish")
	ErrStaleHead = errors.New("chain head changed while building")
)

type Chain interface {
	WithChainHead(f func(head *block.Block) error) error
	Subscribe() <-chan *chain.ChainUpdate
}

type Store interface {
	HasBatch(batchID ids.ID) (bool, error)
	HasTransaction(txID ids.ID) (bool, error)
}

type Executor interface {
	CreateContext(baseRoot ids.ID) (execution.ContextID, error)
	Reader(id execution.ContextID) (execution.Reader, error)
	Execute(ctx context.Context, id execution.ContextID, batch *block.Batch) (*execution.BatchResult, error)
	Seal(id execution.ContextID) (ids.ID, []execution.StateChange, error)
	Discard(id execution.ContextID)
}

// Sender delivers a block built by the publisher.
type Sender interface {
	SendBlock(ctx context.Context, blk *block.Block) error
}

type Config struct {
	MaxBatchesPerBlock int
}

// Publisher keeps a pool of batches that are not part of the canonical chain
// and builds blocks out of it.
type Publisher struct {
	log        logging.Logger
	metrics    *metrics
	chain      Chain
	updates    <-chan *chain.ChainUpdate
	store      Store
	executor   Executor
	engine     consensus.Engine
	key        *secp256k1.PrivateKey
	sender     Sender
	maxBatches int

	// buildLock allows one candidate at a time.
	buildLock sync.Mutex

	lock    sync.Mutex
	pending *linked.Hashmap[ids.ID, *block.Batch]
	// cancelCandidate abandons the candidate under construction, if any.
	cancelCandidate context.CancelFunc

	onDropped func(batchID ids.ID, reason string)
}

func New(
	config Config,
	c Chain,
	store Store,
	executor Executor,
	engine consensus.Engine,
	key *secp256k1.PrivateKey,
	sender Sender,
	log logging.Logger,
	reg prometheus.Registerer,
) (*Publisher, error) {
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	if config.MaxBatchesPerBlock <= 0 {
		config.MaxBatchesPerBlock = DefaultMaxBatchesPerBlock
	}
	return &Publisher{
		log:        log,
		metrics:    metrics,
		chain:      c,
		updates:    c.Subscribe(),
		store:      store,
		executor:   executor,
		engine:     engine,
		key:        key,
		sender:     sender,
		maxBatches: config.MaxBatchesPerBlock,
		pending:    linked.NewHashmap[ids.ID, *block.Batch](),
		onDropped:  func(ids.ID, string) {},
	}, nil
}

// SetOnBatchDropped sets what is told about batches removed from the pool
// because they can't be published.
func (p *Publisher) SetOnBatchDropped(onDropped func(batchID ids.ID, reason string)) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.onDropped = onDropped
}

// QueueBatch adds [batch] to the end of the pool. Batches that are pending or
// committed are ignored.
func (p *Publisher) QueueBatch(batch *block.Batch) error {
	batchID := batch.ID()
	committed, err := p.store.HasBatch(batchID)
	if err != nil {
		return err
	}
	if committed {
		return nil
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.pending.Get(batchID); ok {
		return nil
	}
	p.pending.Put(batchID, batch)
	p.metrics.pending.Set(float64(p.pending.Len()))
	return nil
}

// Pending returns the batches in the pool in the order they will be
// published.
func (p *Publisher) Pending() []*block.Batch {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.peek(p.pending.Len())
}

func (p *Publisher) peek(n int) []*block.Batch {
	batches := make([]*block.Batch, 0, min(n, p.pending.Len()))
	it := p.pending.NewIterator()
	for len(batches) < n && it.Next() {
		batches = append(batches, it.Value())
	}
	return batches
}

// Run applies chain updates until [ctx] is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-p.updates:
			if err := p.OnChainUpdated(ctx, update); err != nil {
				return err
			}
		}
	}
}

// OnChainUpdated abandons the candidate under construction, drops the
// batches the new chain committed and returns the batches of rolled back
// blocks to the front of the pool.
func (p *Publisher) OnChainUpdated(_ context.Context, update *chain.ChainUpdate) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cancelCandidate != nil {
		p.cancelCandidate()
		p.cancelCandidate = nil
	}

	committed := set.Set[ids.ID]{}
	for _, blkUpdate := range update.Committed {
		for _, batch := range blkUpdate.Block.Batches {
			batchID := batch.ID()
			committed.Add(batchID)
			p.pending.Delete(batchID)
		}
	}
	if !update.Reorg() {
		p.metrics.pending.Set(float64(p.pending.Len()))
		return nil
	}

	// Uncommitted runs from the old head down; requeue oldest first.
	pending := linked.NewHashmapWithSize[ids.ID, *block.Batch](p.pending.Len())
	for i := len(update.Uncommitted) - 1; i >= 0; i-- {
		for _, batch := range update.Uncommitted[i].Batches {
			if batchID := batch.ID(); !committed.Contains(batchID) {
				pending.Put(batchID, batch)
			}
		}
	}
	requeued := pending.Len()
	it := p.pending.NewIterator()
	for it.Next() {
		if _, ok := pending.Get(it.Key()); !ok {
			pending.Put(it.Key(), it.Value())
		}
	}
	p.pending = pending
	p.metrics.pending.Set(float64(p.pending.Len()))

	p.log.Debug("requeued batches of rolled back blocks",
		zap.Int("numBatches", requeued),
		zap.Int("numBlocks", len(update.Uncommitted)),
	)
	return nil
}

// BuildBlock builds a block on the current head out of the pending batches
// and sends it. Batches that fail execution are dropped from the pool. If the
// chain head changes before the block is sent, ErrStaleHead is returned.
func (p *Publisher) BuildBlock(ctx context.Context) (*block.Block, error) {
	p.buildLock.Lock()
	defer p.buildLock.Unlock()

	candidateCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		head    *block.Block
		batches []*block.Batch
	)
	err := p.chain.WithChainHead(func(h *block.Block) error {
		head = h

		p.lock.Lock()
		defer p.lock.Unlock()

		batches = p.peek(p.maxBatches)
		p.cancelCandidate = cancel
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer p.clearCandidate()

	if len(batches) == 0 {
		return nil, ErrNoBatches
	}

	contextID, err := p.executor.CreateContext(head.StateRoot)
	if err != nil {
		return nil, err
	}
	defer p.executor.Discard(contextID)

	state, err := p.executor.Reader(contextID)
	if err != nil {
		return nil, err
	}
	payload, err := p.engine.Payload(candidateCtx, head, state)
	if err != nil {
		return nil, err
	}

	included, err := p.execute(candidateCtx, contextID, batches)
	switch {
	case candidateCtx.Err() != nil && ctx.Err() == nil:
		return nil, p.stale(head)
	case err != nil:
		return nil, err
	case len(included) == 0:
		return nil, ErrNoBatches
	}

	root, _, err := p.executor.Seal(contextID)
	if err != nil {
		return nil, err
	}
	blk, err := block.Build(head.ID(), head.Height+1, root, payload, included, p.key)
	if err != nil {
		return nil, fmt.Errorf("couldn't sign block: %w", err)
	}
	if candidateCtx.Err() != nil && ctx.Err() == nil {
		return nil, p.stale(head)
	}
	if err := p.sender.SendBlock(ctx, blk); err != nil {
		return nil, err
	}

	p.metrics.published.Inc()
	p.log.Info("published block",
		zap.Stringer("blkID", blk.ID()),
		zap.Uint64("height", blk.Height),
		zap.Int("numBatches", len(included)),
	)
	return blk, nil
}

// execute applies [batches] to the context and returns the ones that
// succeeded.
func (p *Publisher) execute(ctx context.Context, contextID execution.ContextID, batches []*block.Batch) ([]*block.Batch, error) {
	var (
		included = make([]*block.Batch, 0, len(batches))
		txIDs    = set.Set[ids.ID]{}
	)
	for _, batch := range batches {
		committed, err := p.store.HasBatch(batch.ID())
		if err != nil {
			return nil, err
		}
		if committed {
			// The chain update removing it from the pool is on its way.
			p.remove(batch)
			continue
		}

		duplicate, err := p.hasDuplicate(batch, txIDs)
		if err != nil {
			return nil, err
		}
		if duplicate {
			p.dropBatch(batch, "duplicate transaction")
			continue
		}

		result, err := p.executor.Execute(ctx, contextID, batch)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			p.dropBatch(batch, "execution failed")
			continue
		}
		included = append(included, batch)
		txIDs.Add(batch.TxIDs()...)
	}
	return included, nil
}

func (p *Publisher) hasDuplicate(batch *block.Batch, txIDs set.Set[ids.ID]) (bool, error) {
	for _, txID := range batch.TxIDs() {
		if txIDs.Contains(txID) {
			return true, nil
		}
		committed, err := p.store.HasTransaction(txID)
		if err != nil || committed {
			return committed, err
		}
	}
	return false, nil
}

func (p *Publisher) dropBatch(batch *block.Batch, reason string) {
	p.lock.Lock()
	onDropped := p.onDropped
	p.lock.Unlock()

	p.remove(batch)
	onDropped(batch.ID(), reason)

	p.metrics.invalidBatches.Inc()
	p.log.Debug("dropping batch",
		zap.Stringer("batchID", batch.ID()),
		zap.String("reason", reason),
	)
}

func (p *Publisher) remove(batch *block.Batch) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.pending.Delete(batch.ID())
	p.metrics.pending.Set(float64(p.pending.Len()))
}

func (p *Publisher) stale(head *block.Block) error {
	p.metrics.staleCandidates.Inc()
	p.log.Debug("abandoning candidate",
		zap.Stringer("parentID", head.ID()),
		zap.Uint64("height", head.Height+1),
	)
	return fmt.Errorf("%w: built on %s", ErrStaleHead, head.ID())
}

func (p *Publisher) clearCandidate() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.cancelCandidate = nil
}
