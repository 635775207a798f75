// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validator decides whether a block is valid on top of its parent.
package validator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ava-labs/journal/cache"
	"github.com/ava-labs/journal/cache/lru"
	"github.com/ava-labs/journal/cache/metercacher"
	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/consensus"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/buffer"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/set"

	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	DefaultWorkers          = 4
	DefaultVerdictCacheSize = 2048
)

var (
	// ErrExecutionFault marks a validation aborted by a failure of the node,
	// such as a failed state read. Such a block is not marked Invalid: the
	// verdict is Unknown, nothing is cached, and the block may be validated
	// again. Children waiting on it are dropped with it and must be
	// resubmitted.
	ErrExecutionFault = errors.New("execution fault")

	ErrMissingParent     = errors.New("parent block is unknown")
	ErrInvalidParent     = errors.New("parent block is invalid")
	ErrGenesisBlock      = errors.New("genesis block can't be validated")
	ErrHeightMismatch    = errors.New("height is not parent height + 1")
	ErrStateRootMismatch = errors.New("computed state root does not match block")
)

// Cache resolves the blocks of both committed and uncommitted chains.
type Cache interface {
	Get(blkID ids.ID) (*block.Block, error)
}

// Store is the committed chain.
type Store interface {
	Has(blkID ids.ID) (bool, error)
	Get(blkID ids.ID) (*block.Block, error)
	BatchBlock(batchID ids.ID) (ids.ID, error)
	TransactionBlock(txID ids.ID) (ids.ID, error)
}

// Executor runs blocks in speculative execution contexts.
type Executor interface {
	CreateContext(baseRoot ids.ID) (execution.ContextID, error)
	Reader(id execution.ContextID) (execution.Reader, error)
	Execute(ctx context.Context, id execution.ContextID, batch *block.Batch) (*execution.BatchResult, error)
	Seal(id execution.ContextID) (ids.ID, []execution.StateChange, error)
	Discard(id execution.ContextID)
}

type Config struct {
	// Workers is the number of blocks validated in parallel by Run.
	Workers int
	// VerdictCacheSize is the number of verdicts remembered per block ID.
	VerdictCacheSize int
}

// Validator is safe for concurrent use. Concurrent validations of the same
// block share one execution.
type Validator struct {
	log      logging.Logger
	metrics  *metrics
	tracer   trace.Tracer
	cache    Cache
	store    Store
	executor Executor
	engine   consensus.Engine
	workers  int

	group    singleflight.Group
	verdicts cache.Cacher[ids.ID, *Result]

	queue   buffer.BlockingDeque[*block.Block]
	results chan *Result

	lock sync.Mutex
	// inFlight counts the submitted blocks referencing each block ID.
	inFlight map[ids.ID]int
}

func New(
	config Config,
	blockCache Cache,
	store Store,
	executor Executor,
	engine consensus.Engine,
	tracer trace.Tracer,
	log logging.Logger,
	reg prometheus.Registerer,
) (*Validator, error) {
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.VerdictCacheSize <= 0 {
		config.VerdictCacheSize = DefaultVerdictCacheSize
	}
	verdicts, err := metercacher.New[ids.ID, *Result](
		namespace+"_verdict_cache",
		reg,
		lru.NewCache[ids.ID, *Result](config.VerdictCacheSize),
	)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = trace.Noop
	}
	return &Validator{
		log:      log,
		metrics:  metrics,
		tracer:   tracer,
		cache:    blockCache,
		store:    store,
		executor: executor,
		engine:   engine,
		workers:  config.Workers,
		verdicts: verdicts,
		queue:    buffer.NewUnboundedBlockingDeque[*block.Block](config.Workers),
		results:  make(chan *Result, config.Workers),
		inFlight: make(map[ids.ID]int),
	}, nil
}

// Results delivers the result of every submitted block.
func (v *Validator) Results() <-chan *Result {
	return v.results
}

// Submit queues [blk] for validation by Run. Returns false once Run has
// stopped.
func (v *Validator) Submit(blk *block.Block) bool {
	v.lock.Lock()
	v.inFlight[blk.ID()]++
	v.inFlight[blk.Parent()]++
	v.lock.Unlock()

	if !v.queue.PushRight(blk) {
		v.release(blk)
		return false
	}
	v.metrics.queued.Set(float64(v.queue.Len()))
	return true
}

// InUse reports whether a submitted block that has not been delivered yet
// references [blkID].
func (v *Validator) InUse(blkID ids.ID) bool {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.inFlight[blkID] > 0
}

func (v *Validator) release(blk *block.Block) {
	v.lock.Lock()
	defer v.lock.Unlock()

	for _, id := range []ids.ID{blk.ID(), blk.Parent()} {
		v.inFlight[id]--
		if v.inFlight[id] <= 0 {
			delete(v.inFlight, id)
		}
	}
}

// Forget drops the remembered verdict of [blkID].
func (v *Validator) Forget(blkID ids.ID) {
	v.verdicts.Evict(blkID)
}

// Run validates submitted blocks with up to Workers in parallel until [ctx]
// is done.
func (v *Validator) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		v.queue.Close()
	}()

	var (
		sem    = semaphore.NewWeighted(int64(v.workers))
		eg, gc = errgroup.WithContext(ctx)
	)
	for {
		blk, ok := v.queue.PopLeft()
		if !ok {
			break
		}
		v.metrics.queued.Set(float64(v.queue.Len()))
		if err := sem.Acquire(gc, 1); err != nil {
			v.release(blk)
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			defer v.release(blk)

			result := v.Validate(gc, blk)
			select {
			case v.results <- result:
			case <-gc.Done():
				if result.Verdict == Valid {
					v.executor.Discard(result.Context)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// Validate returns the verdict of [blk]. A remembered verdict is returned
// without executing the block again.
func (v *Validator) Validate(ctx context.Context, blk *block.Block) *Result {
	blkID := blk.ID()
	if result, ok := v.verdicts.Get(blkID); ok {
		return result
	}

	r, _, _ := v.group.Do(blkID.String(), func() (interface{}, error) {
		if result, ok := v.verdicts.Get(blkID); ok {
			return result, nil
		}

		start := time.Now()
		result := v.validate(ctx, blk)
		v.metrics.duration.Observe(time.Since(start).Seconds())
		v.metrics.validations.WithLabelValues(result.Verdict.String()).Inc()

		switch {
		case result.Fault():
			v.metrics.faults.Inc()
			v.log.Warn("block validation faulted",
				zap.Stringer("blkID", blkID),
				zap.Uint64("height", blk.Height),
				zap.Error(result.Err),
			)
		case result.Verdict == Invalid:
			v.log.Debug("block is invalid",
				zap.Stringer("blkID", blkID),
				zap.Uint64("height", blk.Height),
				zap.Error(result.Err),
			)
			v.verdicts.Put(blkID, result)
		case result.Verdict == Valid:
			v.verdicts.Put(blkID, result)
		}
		return result, nil
	})
	return r.(*Result)
}

func (v *Validator) validate(ctx context.Context, blk *block.Block) *Result {
	ctx, span := v.tracer.Start(ctx, "validator.validate", oteltrace.WithAttributes(
		attribute.Stringer("blkID", blk.ID()),
		attribute.Int64("height", int64(blk.Height)),
	))
	defer span.End()

	invalid := func(err error) *Result {
		return &Result{
			Block:   blk,
			Verdict: Invalid,
			Err:     err,
		}
	}
	unknown := func(err error) *Result {
		return &Result{
			Block:   blk,
			Verdict: Unknown,
			Err:     err,
		}
	}

	if blk.Height == 0 {
		return invalid(ErrGenesisBlock)
	}
	if err := blk.Verify(); err != nil {
		return invalid(err)
	}

	parentID := blk.Parent()
	if parentResult, ok := v.verdicts.Get(parentID); ok && parentResult.Verdict == Invalid {
		return invalid(fmt.Errorf("%w: %s", ErrInvalidParent, parentID))
	}
	parent, err := v.cache.Get(parentID)
	if errors.Is(err, database.ErrNotFound) {
		return unknown(fmt.Errorf("%w: %s", ErrMissingParent, parentID))
	}
	if err != nil {
		return unknown(fmt.Errorf("%w: %w", ErrExecutionFault, err))
	}
	if blk.Height != parent.Height+1 {
		return invalid(fmt.Errorf("%w: height %d, parent height %d", ErrHeightMismatch, blk.Height, parent.Height))
	}

	if err := v.verifyUnique(ctx, blk, parent); err != nil {
		if errors.Is(err, ErrExecutionFault) || errors.Is(err, ErrMissingParent) {
			return unknown(err)
		}
		return invalid(err)
	}

	contextID, err := v.executor.CreateContext(parent.StateRoot)
	if err != nil {
		return unknown(fmt.Errorf("%w: %w", ErrExecutionFault, err))
	}
	result, err := v.execute(ctx, blk, parent, contextID)
	if err != nil || result.Verdict != Valid {
		v.executor.Discard(contextID)
	}
	if err != nil {
		return unknown(fmt.Errorf("%w: %w", ErrExecutionFault, err))
	}
	return result
}

// execute checks the consensus rules and runs the block's batches in the
// context [contextID] built on the parent's state.
func (v *Validator) execute(
	ctx context.Context,
	blk *block.Block,
	parent *block.Block,
	contextID execution.ContextID,
) (*Result, error) {
	state, err := v.executor.Reader(contextID)
	if err != nil {
		return nil, err
	}
	if err := v.verifyConsensus(ctx, blk, parent, state); err != nil {
		if isFault(err) {
			return nil, err
		}
		return &Result{
			Block:   blk,
			Verdict: Invalid,
			Err:     err,
		}, nil
	}

	ctx, span := v.tracer.Start(ctx, "validator.execute", oteltrace.WithAttributes(
		attribute.Int("numBatches", len(blk.Batches)),
	))
	defer span.End()

	batchResults := make([]*execution.BatchResult, len(blk.Batches))
	for i, batch := range blk.Batches {
		batchResults[i], err = v.executor.Execute(ctx, contextID, batch)
		if err != nil {
			return nil, err
		}
	}
	root, changes, err := v.executor.Seal(contextID)
	if err != nil {
		return nil, err
	}
	if root != blk.StateRoot {
		return &Result{
			Block:        blk,
			Verdict:      Invalid,
			Err:          fmt.Errorf("%w: computed %s, declared %s", ErrStateRootMismatch, root, blk.StateRoot),
			BatchResults: batchResults,
		}, nil
	}
	return &Result{
		Block:        blk,
		Verdict:      Valid,
		StateRoot:    root,
		Context:      contextID,
		BatchResults: batchResults,
		Changes:      changes,
	}, nil
}

func (v *Validator) verifyConsensus(ctx context.Context, blk, parent *block.Block, state execution.Reader) error {
	ctx, span := v.tracer.Start(ctx, "validator.verifyConsensus")
	defer span.End()

	return v.engine.VerifyBlock(ctx, blk, parent, state)
}

// verifyUnique checks that no batch or transaction of [blk] is already part of
// the chain ending at [parent].
func (v *Validator) verifyUnique(ctx context.Context, blk, parent *block.Block) error {
	_, span := v.tracer.Start(ctx, "validator.verifyUnique")
	defer span.End()

	var (
		batchIDs set.Set[ids.ID]
		txIDs    set.Set[ids.ID]
		ancestor = parent
	)
	for {
		committed, err := v.store.Has(ancestor.ID())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutionFault, err)
		}
		if committed {
			break
		}
		batchIDs.Add(ancestor.BatchIDs...)
		txIDs.Add(ancestor.TxIDs()...)
		if ancestor.Height == 0 {
			break
		}
		next, err := v.cache.Get(ancestor.Parent())
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMissingParent, ancestor.Parent())
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutionFault, err)
		}
		ancestor = next
	}
	// Committed blocks above [ancestor] belong to a competing chain.
	forkHeight := ancestor.Height

	for _, batch := range blk.Batches {
		batchID := batch.ID()
		if batchIDs.Contains(batchID) {
			return fmt.Errorf("%w: %s", block.ErrDuplicateBatch, batchID)
		}
		dup, err := v.committedBelow(v.store.BatchBlock, batchID, forkHeight)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: %s", block.ErrDuplicateBatch, batchID)
		}
		for _, txID := range batch.TxIDs() {
			if txIDs.Contains(txID) {
				return fmt.Errorf("%w: %s", block.ErrDuplicateTx, txID)
			}
			dup, err := v.committedBelow(v.store.TransactionBlock, txID, forkHeight)
			if err != nil {
				return err
			}
			if dup {
				return fmt.Errorf("%w: %s", block.ErrDuplicateTx, txID)
			}
		}
	}
	return nil
}

// committedBelow reports whether [id] is committed in a block at or below
// [height].
func (v *Validator) committedBelow(lookup func(ids.ID) (ids.ID, error), id ids.ID, height uint64) (bool, error) {
	blkID, err := lookup(id)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutionFault, err)
	}
	blk, err := v.store.Get(blkID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutionFault, err)
	}
	return blk.Height <= height, nil
}

// isFault reports whether [err] returned by a consensus engine is caused by
// the node rather than by the block.
func isFault(err error) bool {
	return errors.Is(err, execution.ErrUnknownRoot) ||
		errors.Is(err, execution.ErrUnknownContext) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
