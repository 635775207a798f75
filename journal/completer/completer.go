// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package completer holds blocks and batches received from the network until
// everything they depend on is known locally.
package completer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/journal/cache"
	"github.com/ava-labs/journal/cache/lru"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/network"
	"github.com/ava-labs/journal/utils/job"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/set"
	"github.com/ava-labs/journal/utils/timer/mockable"
)

const (
	DefaultRetryInterval = 2 * time.Second
	DefaultMaxAttempts   = 5
	DefaultSeenCacheSize = 16384
)

// Cache is where released blocks are placed and known blocks are looked up.
type Cache interface {
	Contains(blkID ids.ID) bool
	Put(blk *block.Block)
}

// Store reports what is already part of the committed chain.
type Store interface {
	HasTransaction(txID ids.ID) (bool, error)
	HasBatch(batchID ids.ID) (bool, error)
}

type Config struct {
	// RetryInterval is the time between two requests for the same missing
	// dependency.
	RetryInterval time.Duration
	// MaxAttempts is the number of requests sent for a dependency before the
	// items waiting on it are dropped.
	MaxAttempts int
	// SeenCacheSize bounds the number of released batches and transactions
	// remembered for deduplication.
	SeenCacheSize int
	Clock         *mockable.Clock
}

// Completer forwards a block once its parent is known and a batch once every
// transaction its transactions depend on is known.
//
// Sinks are called with the completer's lock held, so they must not call back
// into the completer.
type Completer struct {
	log           logging.Logger
	metrics       *metrics
	clock         *mockable.Clock
	network       network.Network
	cache         Cache
	store         Store
	retryInterval time.Duration
	maxAttempts   int

	lock sync.Mutex
	// scheduler maps missing block and transaction IDs to the items waiting
	// on them.
	scheduler      *job.Scheduler[ids.ID]
	pendingBlocks  map[ids.ID]*block.Block
	pendingBatches map[ids.ID]*block.Batch
	// pendingTxs maps the transactions of pending batches to their batch.
	pendingTxs  map[ids.ID]ids.ID
	requests    *requests
	seenBatches cache.Cacher[ids.ID, struct{}]
	seenTxs     cache.Cacher[ids.ID, struct{}]

	onBlock func(*block.Block)
	onBatch func(*block.Batch)
}

func New(
	config Config,
	net network.Network,
	blockCache Cache,
	store Store,
	log logging.Logger,
	reg prometheus.Registerer,
) (*Completer, error) {
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.SeenCacheSize <= 0 {
		config.SeenCacheSize = DefaultSeenCacheSize
	}
	if config.Clock == nil {
		config.Clock = &mockable.Clock{}
	}
	return &Completer{
		log:            log,
		metrics:        metrics,
		clock:          config.Clock,
		network:        net,
		cache:          blockCache,
		store:          store,
		retryInterval:  config.RetryInterval,
		maxAttempts:    config.MaxAttempts,
		scheduler:      job.NewScheduler[ids.ID](),
		pendingBlocks:  make(map[ids.ID]*block.Block),
		pendingBatches: make(map[ids.ID]*block.Batch),
		pendingTxs:     make(map[ids.ID]ids.ID),
		requests:       newRequests(),
		seenBatches:    lru.NewCache[ids.ID, struct{}](config.SeenCacheSize),
		seenTxs:        lru.NewCache[ids.ID, struct{}](config.SeenCacheSize),
		onBlock:        func(*block.Block) {},
		onBatch:        func(*block.Batch) {},
	}, nil
}

// SetOnBlockReceived sets where complete blocks are forwarded.
func (c *Completer) SetOnBlockReceived(onBlock func(*block.Block)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onBlock = onBlock
}

// SetOnBatchReceived sets where complete batches are forwarded.
func (c *Completer) SetOnBatchReceived(onBatch func(*block.Batch)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onBatch = onBatch
}

// SubmitBlock forwards [blk] if its parent is known and holds it otherwise.
// Submitting a block that is already known or pending does nothing.
func (c *Completer) SubmitBlock(ctx context.Context, blk *block.Block) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	blkID := blk.ID()
	if _, ok := c.pendingBlocks[blkID]; ok || c.cache.Contains(blkID) {
		return nil
	}
	if blk.Height == 0 {
		c.log.Debug("dropping genesis block from the network",
			zap.Stringer("blkID", blkID),
		)
		return nil
	}

	parentID := blk.Parent()
	if c.cache.Contains(parentID) {
		return c.releaseBlock(ctx, blk)
	}

	c.log.Debug("holding block until its parent is known",
		zap.Stringer("blkID", blkID),
		zap.Stringer("parentID", parentID),
	)
	c.pendingBlocks[blkID] = blk
	c.metrics.pendingBlocks.Set(float64(len(c.pendingBlocks)))
	if err := c.scheduler.Schedule(ctx, &blockJob{completer: c, blk: blk}, parentID); err != nil {
		return err
	}
	// A pending parent is already being requested through its own ancestor.
	if _, ok := c.pendingBlocks[parentID]; !ok {
		c.request(ctx, parentID, blockDependency)
	}
	return nil
}

// SubmitBatch forwards [batch] if every transaction it depends on is known and
// holds it otherwise. Submitting a batch that is already known or pending does
// nothing.
func (c *Completer) SubmitBatch(ctx context.Context, batch *block.Batch) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	batchID := batch.ID()
	if _, ok := c.pendingBatches[batchID]; ok {
		return nil
	}
	if _, ok := c.seenBatches.Get(batchID); ok {
		return nil
	}
	committed, err := c.store.HasBatch(batchID)
	if err != nil {
		return err
	}
	if committed {
		return nil
	}

	missing, err := c.missingTransactions(batch)
	if err != nil {
		return err
	}
	if missing.Len() == 0 {
		return c.releaseBatch(ctx, batch)
	}

	c.log.Debug("holding batch until its dependencies are known",
		zap.Stringer("batchID", batchID),
		zap.Int("numMissing", missing.Len()),
	)
	c.pendingBatches[batchID] = batch
	for _, txID := range batch.TxIDs() {
		c.pendingTxs[txID] = batchID
	}
	c.metrics.pendingBatches.Set(float64(len(c.pendingBatches)))

	deps := missing.List()
	if err := c.scheduler.Schedule(ctx, &batchJob{completer: c, batch: batch}, deps...); err != nil {
		return err
	}
	for _, txID := range deps {
		if _, ok := c.pendingTxs[txID]; !ok {
			c.request(ctx, txID, txDependency)
		}
	}
	return nil
}

// missingTransactions returns the dependencies of [batch] that are neither
// committed, released nor satisfied inside the batch itself.
func (c *Completer) missingTransactions(batch *block.Batch) (set.Set[ids.ID], error) {
	var (
		inBatch = set.NewSet[ids.ID](len(batch.Transactions))
		missing set.Set[ids.ID]
	)
	for _, tx := range batch.Transactions {
		for _, dep := range tx.Dependencies {
			if inBatch.Contains(dep) || missing.Contains(dep) {
				continue
			}
			if _, ok := c.seenTxs.Get(dep); ok {
				continue
			}
			committed, err := c.store.HasTransaction(dep)
			if err != nil {
				return nil, err
			}
			if !committed {
				missing.Add(dep)
			}
		}
		inBatch.Add(tx.ID())
	}
	return missing, nil
}

// BlockResolved releases the items waiting on [blkID] if the block is now
// known. Chains of waiting blocks are released in one pass.
func (c *Completer) BlockResolved(ctx context.Context, blkID ids.ID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.cache.Contains(blkID) {
		return nil
	}
	c.cancelRequest(blkID)
	return c.scheduler.Fulfill(ctx, blkID)
}

// InUse reports whether a pending item references [blkID]. Blocks in use must
// not be evicted from the cache.
func (c *Completer) InUse(blkID ids.ID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	_, pending := c.pendingBlocks[blkID]
	return pending || c.scheduler.HasDependents(blkID)
}

// Retry re-requests every dependency whose retry deadline passed and drops the
// items waiting on dependencies that ran out of attempts.
func (c *Completer) Retry(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.clock.Time()
	var due []*request
	for {
		req, ok := c.requests.popDue(now)
		if !ok {
			break
		}
		due = append(due, req)
	}

	for _, req := range due {
		if !c.scheduler.HasDependents(req.dependency) {
			continue
		}
		if req.attempts >= c.maxAttempts {
			c.log.Info("abandoning missing dependency",
				zap.Stringer("kind", req.kind),
				zap.Stringer("dependency", req.dependency),
				zap.Int("attempts", req.attempts),
			)
			if err := c.scheduler.Abandon(ctx, req.dependency); err != nil {
				return err
			}
			continue
		}
		c.send(ctx, req)
		req.deadline = now.Add(c.retryInterval)
		c.requests.put(req)
	}
	c.metrics.outstandingRequests.Set(float64(c.requests.len()))
	return nil
}

// Run retries outstanding requests until [ctx] is done.
func (c *Completer) Run(ctx context.Context) error {
	frequency := max(c.retryInterval/4, time.Millisecond)
	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Retry(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Completer) request(ctx context.Context, dependency ids.ID, kind dependencyKind) {
	if _, ok := c.requests.get(dependency); ok {
		return
	}
	req := &request{
		dependency: dependency,
		kind:       kind,
		deadline:   c.clock.Time().Add(c.retryInterval),
	}
	c.send(ctx, req)
	c.requests.put(req)
	c.metrics.outstandingRequests.Set(float64(c.requests.len()))
}

func (c *Completer) send(ctx context.Context, req *request) {
	req.attempts++
	c.metrics.requests.Inc()

	var err error
	switch req.kind {
	case blockDependency:
		err = c.network.RequestBlock(ctx, req.dependency)
	case txDependency:
		err = c.network.RequestBatchByTransactionID(ctx, req.dependency)
	}
	if err != nil {
		c.log.Debug("failed to request dependency",
			zap.Stringer("kind", req.kind),
			zap.Stringer("dependency", req.dependency),
			zap.Int("attempt", req.attempts),
			zap.Error(err),
		)
	}
}

func (c *Completer) cancelRequest(dependency ids.ID) {
	c.requests.remove(dependency)
	c.metrics.outstandingRequests.Set(float64(c.requests.len()))
}

func (c *Completer) releaseBlock(ctx context.Context, blk *block.Block) error {
	blkID := blk.ID()
	delete(c.pendingBlocks, blkID)
	c.metrics.pendingBlocks.Set(float64(len(c.pendingBlocks)))
	c.cancelRequest(blkID)

	c.cache.Put(blk)
	c.onBlock(blk)
	return c.scheduler.Fulfill(ctx, blkID)
}

func (c *Completer) dropBlock(ctx context.Context, blk *block.Block) error {
	blkID := blk.ID()
	c.log.Info("dropping block with unresolved ancestor",
		zap.Stringer("blkID", blkID),
		zap.Uint64("height", blk.Height),
	)
	delete(c.pendingBlocks, blkID)
	c.metrics.pendingBlocks.Set(float64(len(c.pendingBlocks)))
	c.metrics.droppedBlocks.Inc()
	return c.scheduler.Abandon(ctx, blkID)
}

func (c *Completer) releaseBatch(ctx context.Context, batch *block.Batch) error {
	c.removePendingBatch(batch)
	c.seenBatches.Put(batch.ID(), struct{}{})
	txIDs := batch.TxIDs()
	for _, txID := range txIDs {
		c.seenTxs.Put(txID, struct{}{})
		c.cancelRequest(txID)
	}

	c.onBatch(batch)
	for _, txID := range txIDs {
		if err := c.scheduler.Fulfill(ctx, txID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Completer) dropBatch(ctx context.Context, batch *block.Batch) error {
	c.log.Info("dropping batch with unresolved dependencies",
		zap.Stringer("batchID", batch.ID()),
	)
	c.removePendingBatch(batch)
	c.metrics.droppedBatches.Inc()
	for _, txID := range batch.TxIDs() {
		if err := c.scheduler.Abandon(ctx, txID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Completer) removePendingBatch(batch *block.Batch) {
	delete(c.pendingBatches, batch.ID())
	for _, txID := range batch.TxIDs() {
		delete(c.pendingTxs, txID)
	}
	c.metrics.pendingBatches.Set(float64(len(c.pendingBatches)))
}

type blockJob struct {
	completer *Completer
	blk       *block.Block
}

func (j *blockJob) Execute(ctx context.Context, _ []ids.ID, abandoned []ids.ID) error {
	if len(abandoned) > 0 {
		return j.completer.dropBlock(ctx, j.blk)
	}
	return j.completer.releaseBlock(ctx, j.blk)
}

type batchJob struct {
	completer *Completer
	batch     *block.Batch
}

func (j *batchJob) Execute(ctx context.Context, _ []ids.ID, abandoned []ids.ID) error {
	if len(abandoned) > 0 {
		return j.completer.dropBatch(ctx, j.batch)
	}
	return j.completer.releaseBatch(ctx, j.batch)
}
