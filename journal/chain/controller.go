// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain chooses the canonical chain among validated blocks and
// commits it.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/consensus"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/validator"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/set"
)

const subscriptionBuffer = 64

var (
	// ErrForkPointNotFound means the candidate chain could not be connected
	// to the current chain. The head is kept.
	ErrForkPointNotFound = errors.New("fork point not found")
	ErrNotInitialized    = errors.New("chain head is not initialized")
	ErrHeadStateMismatch = errors.New("committed state root does not match chain head")
)

// Cache resolves blocks of both committed and uncommitted chains.
type Cache interface {
	Get(blkID ids.ID) (*block.Block, error)
	GetCached(blkID ids.ID) (*block.Block, bool)
	Put(blk *block.Block)
	Promote(blkID ids.ID)
}

// Store is the canonical chain.
type Store interface {
	ChainHead() (*block.Block, error)
	Has(blkID ids.ID) (bool, error)
	Update(newChain, oldChain []*block.Block) (database.Batch, error)
}

type Validator interface {
	Submit(blk *block.Block) bool
	Results() <-chan *validator.Result
	Forget(blkID ids.ID)
}

// Executor owns the execution contexts of valid blocks.
type Executor interface {
	CommittedRoot() ids.ID
	Squash(forkRoot ids.ID, contextIDs []execution.ContextID) (*execution.Squash, error)
	Commit(sq *execution.Squash, extras ...database.Batch) error
	Discard(id execution.ContextID)
}

type status byte

const (
	pendingValidation status = iota
	validUncommitted
	invalid
)

func (s status) String() string {
	switch s {
	case pendingValidation:
		return "pending"
	case validUncommitted:
		return "valid"
	default:
		return "invalid"
	}
}

// blockState tracks a block that is not part of the canonical chain.
type blockState struct {
	blk    *block.Block
	status status
	// submitted is set while the block is being validated.
	submitted bool
	// stale is set if the block must be validated again once its current
	// validation returns.
	stale  bool
	result *validator.Result
}

// Controller is safe for concurrent use.
//
// Lock order: headLock before lock.
type Controller struct {
	log       logging.Logger
	metrics   *metrics
	cache     Cache
	store     Store
	validator Validator
	executor  Executor
	engine    consensus.Engine
	observers []Observer

	// headLock is held while the head is changed and shared by readers that
	// need a stable head.
	headLock sync.RWMutex
	head     *block.Block

	lock   sync.Mutex
	states map[ids.ID]*blockState
	// waiting maps a block to its children waiting on its validation.
	waiting map[ids.ID][]*block.Block
	// children counts the tracked children of each block.
	children    map[ids.ID]int
	subscribers []chan *ChainUpdate
}

func New(
	blockCache Cache,
	store Store,
	v Validator,
	executor Executor,
	engine consensus.Engine,
	log logging.Logger,
	reg prometheus.Registerer,
	observers ...Observer,
) (*Controller, error) {
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Controller{
		log:       log,
		metrics:   metrics,
		cache:     blockCache,
		store:     store,
		validator: v,
		executor:  executor,
		engine:    engine,
		observers: observers,
		states:    make(map[ids.ID]*blockState),
		waiting:   make(map[ids.ID][]*block.Block),
		children:  make(map[ids.ID]int),
	}, nil
}

// Initialize loads the chain head from the store. The committed state must be
// at the head's state root.
func (c *Controller) Initialize() error {
	head, err := c.store.ChainHead()
	if err != nil {
		return fmt.Errorf("couldn't load chain head: %w", err)
	}
	if root := c.executor.CommittedRoot(); root != head.StateRoot {
		return fmt.Errorf("%w: state at %s, head %s expects %s",
			ErrHeadStateMismatch,
			root,
			head.ID(),
			head.StateRoot,
		)
	}

	c.headLock.Lock()
	defer c.headLock.Unlock()

	c.head = head
	c.metrics.headHeight.Set(float64(head.Height))
	c.log.Info("initialized chain head",
		zap.Stringer("blkID", head.ID()),
		zap.Uint64("height", head.Height),
	)
	return nil
}

// ChainHead returns the current head, or nil before Initialize.
func (c *Controller) ChainHead() *block.Block {
	c.headLock.RLock()
	defer c.headLock.RUnlock()

	return c.head
}

// WithChainHead calls [f] with the head, which doesn't change until [f]
// returns. [f] must not call back into the controller.
func (c *Controller) WithChainHead(f func(head *block.Block) error) error {
	c.headLock.RLock()
	defer c.headLock.RUnlock()

	if c.head == nil {
		return ErrNotInitialized
	}
	return f(c.head)
}

// Subscribe returns a channel receiving every chain update. Updates are
// delivered in order and the controller blocks while the channel is full.
func (c *Controller) Subscribe() <-chan *ChainUpdate {
	c.lock.Lock()
	defer c.lock.Unlock()

	ch := make(chan *ChainUpdate, subscriptionBuffer)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// InUse reports whether [blkID] must stay cached: it is the head, it is
// waiting for its verdict or it is the parent of a tracked block.
func (c *Controller) InUse(blkID ids.ID) bool {
	if head := c.ChainHead(); head != nil && head.ID() == blkID {
		return true
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if st, ok := c.states[blkID]; ok && st.status == pendingValidation {
		return true
	}
	return c.children[blkID] > 0
}

// OnEvict releases the state of a block dropped from the cache.
func (c *Controller) OnEvict(blk *block.Block) {
	c.lock.Lock()
	defer c.lock.Unlock()

	blkID := blk.ID()
	st, ok := c.states[blkID]
	if !ok {
		return
	}
	if st.status == validUncommitted {
		c.executor.Discard(st.result.Context)
	}
	c.validator.Forget(blkID)
	c.untrack(blkID)
}

// QueueBlock starts tracking [blk], which must be cached. Blocks that are
// already known are ignored.
func (c *Controller) QueueBlock(blk *block.Block) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.queueBlock(blk)
}

func (c *Controller) queueBlock(blk *block.Block) error {
	blkID := blk.ID()
	if _, ok := c.states[blkID]; ok {
		return nil
	}
	committed, err := c.store.Has(blkID)
	if err != nil || committed {
		return err
	}

	parentID := blk.Parent()
	if parent, ok := c.states[parentID]; ok {
		switch parent.status {
		case invalid:
			c.markInvalid(blk, fmt.Errorf("%w: %s", validator.ErrInvalidParent, parentID))
		case validUncommitted:
			c.submit(blk)
		default:
			c.wait(blk)
		}
		return nil
	}

	parentCommitted, err := c.store.Has(parentID)
	if err != nil {
		return err
	}
	if parentCommitted {
		c.submit(blk)
		return nil
	}

	parent, ok := c.cache.GetCached(parentID)
	if !ok {
		// The validator reports the missing parent.
		c.submit(blk)
		return nil
	}
	c.wait(blk)
	return c.queueBlock(parent)
}

func (c *Controller) track(blk *block.Block, st *blockState) {
	blkID := blk.ID()
	if _, ok := c.states[blkID]; !ok {
		c.children[blk.Parent()]++
	}
	c.states[blkID] = st
	c.metrics.tracked.Set(float64(len(c.states)))
}

func (c *Controller) untrack(blkID ids.ID) {
	st, ok := c.states[blkID]
	if !ok {
		return
	}
	delete(c.states, blkID)
	parentID := st.blk.Parent()
	c.children[parentID]--
	if c.children[parentID] <= 0 {
		delete(c.children, parentID)
	}
	c.metrics.tracked.Set(float64(len(c.states)))
}

func (c *Controller) submit(blk *block.Block) {
	c.track(blk, &blockState{
		blk:       blk,
		status:    pendingValidation,
		submitted: true,
	})
	if !c.validator.Submit(blk) {
		c.log.Debug("validator stopped, dropping block",
			zap.Stringer("blkID", blk.ID()),
		)
		c.untrack(blk.ID())
	}
}

func (c *Controller) wait(blk *block.Block) {
	c.track(blk, &blockState{
		blk:    blk,
		status: pendingValidation,
	})
	parentID := blk.Parent()
	c.waiting[parentID] = append(c.waiting[parentID], blk)
}

// markInvalid marks [blk] and every block waiting on it as invalid.
func (c *Controller) markInvalid(blk *block.Block, reason error) {
	blkID := blk.ID()
	c.log.Info("block is invalid",
		zap.Stringer("blkID", blkID),
		zap.Uint64("height", blk.Height),
		zap.Error(reason),
	)
	c.track(blk, &blockState{
		blk:    blk,
		status: invalid,
	})
	c.metrics.invalid.Inc()

	children := c.waiting[blkID]
	delete(c.waiting, blkID)
	for _, child := range children {
		c.markInvalid(child, fmt.Errorf("%w: %s", validator.ErrInvalidParent, blkID))
	}
}

// drop stops tracking [blk] and every block waiting on it.
func (c *Controller) drop(blkID ids.ID) {
	c.untrack(blkID)
	children := c.waiting[blkID]
	delete(c.waiting, blkID)
	for _, child := range children {
		c.drop(child.ID())
	}
}

// releaseWaiting submits the blocks waiting on [blkID].
func (c *Controller) releaseWaiting(blkID ids.ID) {
	children := c.waiting[blkID]
	delete(c.waiting, blkID)
	for _, child := range children {
		if st, ok := c.states[child.ID()]; ok && st.status == pendingValidation && !st.submitted {
			c.submit(child)
		}
	}
}

// Run handles validation results until [ctx] is done.
func (c *Controller) Run(ctx context.Context) error {
	results := c.validator.Results()
	for {
		select {
		case <-ctx.Done():
			return nil
		case result := <-results:
			if err := c.OnBlockValidated(ctx, result); err != nil {
				return err
			}
		}
	}
}

// OnBlockValidated records the verdict of a submitted block and, if the block
// is valid, runs fork choice. Returned errors are fatal.
func (c *Controller) OnBlockValidated(ctx context.Context, result *validator.Result) error {
	if !c.recordResult(result) {
		return nil
	}
	return c.forkChoice(ctx, result)
}

// recordResult updates the state of the validated block and reports whether
// fork choice must run.
func (c *Controller) recordResult(result *validator.Result) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	blk := result.Block
	blkID := blk.ID()
	st, ok := c.states[blkID]
	if !ok || st.status != pendingValidation || !st.submitted {
		c.log.Debug("dropping unexpected validation result",
			zap.Stringer("blkID", blkID),
			zap.Stringer("verdict", result.Verdict),
		)
		accepted := ok && st.status == validUncommitted && st.result.Context == result.Context
		if result.Verdict == validator.Valid && !accepted {
			c.executor.Discard(result.Context)
		}
		return false
	}

	if st.stale {
		// The parent's context was rolled back while this block was being
		// validated.
		if result.Verdict == validator.Valid {
			c.executor.Discard(result.Context)
		}
		c.validator.Forget(blkID)
		c.untrack(blkID)
		if err := c.queueBlock(blk); err != nil {
			c.log.Error("couldn't requeue block",
				zap.Stringer("blkID", blkID),
				zap.Error(err),
			)
		}
		return false
	}

	st.submitted = false
	switch result.Verdict {
	case validator.Invalid:
		c.markInvalid(blk, result.Err)
		return false
	case validator.Unknown:
		if result.Fault() {
			c.log.Warn("dropping block after execution fault",
				zap.Stringer("blkID", blkID),
				zap.Error(result.Err),
			)
		} else {
			c.log.Debug("dropping block with unknown verdict",
				zap.Stringer("blkID", blkID),
				zap.Error(result.Err),
			)
		}
		c.drop(blkID)
		return false
	default:
		st.status = validUncommitted
		st.result = result
		c.releaseWaiting(blkID)
		return true
	}
}

// forkChoice switches the head to the chain ending at the result's block if
// that chain is preferred over the current one.
func (c *Controller) forkChoice(ctx context.Context, result *validator.Result) error {
	c.headLock.Lock()
	update, err := c.switchHead(ctx, result.Block)
	c.headLock.Unlock()
	if err != nil || update == nil {
		return err
	}

	// The update is durable, so a failing observer can't undo it.
	for i, observer := range c.observers {
		if err := observer.OnChainUpdated(ctx, update); err != nil {
			c.metrics.observerFailures.Inc()
			c.log.Error("chain observer failed",
				zap.Int("observer", i),
				zap.Stringer("headID", update.Head.ID()),
				zap.Uint64("height", update.Head.Height),
				zap.Error(err),
			)
		}
	}

	c.lock.Lock()
	subscribers := slices.Clone(c.subscribers)
	c.lock.Unlock()
	for _, ch := range subscribers {
		select {
		case ch <- update:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// switchHead must be called with headLock held. It returns nil if the head is
// kept.
func (c *Controller) switchHead(ctx context.Context, candidate *block.Block) (*ChainUpdate, error) {
	head := c.head
	if head == nil {
		return nil, ErrNotInitialized
	}
	preferred, err := c.prefer(ctx, candidate, head)
	if err != nil || !preferred {
		return nil, err
	}

	newChain, oldChain, forkPoint, err := c.findFork(candidate, head)
	if errors.Is(err, ErrForkPointNotFound) {
		c.forkChoiceFailed(candidate, err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	updates := make([]*BlockUpdate, len(newChain))
	contexts := make([]execution.ContextID, len(newChain))
	for i, blk := range newChain {
		st, ok := c.states[blk.ID()]
		if !ok || st.status != validUncommitted {
			c.forkChoiceFailed(candidate, fmt.Errorf("%w: block %s is not valid", ErrForkPointNotFound, blk.ID()))
			return nil, nil
		}
		updates[i] = &BlockUpdate{
			Block:   blk,
			Results: st.result.BatchResults,
			Changes: st.result.Changes,
		}
		contexts[i] = st.result.Context
	}

	sq, err := c.executor.Squash(forkPoint.StateRoot, contexts)
	if errors.Is(err, execution.ErrUnknownRoot) {
		// The fork is deeper than the retained state.
		c.forkChoiceFailed(candidate, fmt.Errorf("%w: %w", ErrForkPointNotFound, err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	storeBatch, err := c.store.Update(newChain, oldChain)
	if err != nil {
		return nil, err
	}
	if err := c.executor.Commit(sq, storeBatch); err != nil {
		return nil, err
	}

	c.head = candidate
	for _, blk := range newChain {
		blkID := blk.ID()
		c.untrack(blkID)
		c.cache.Promote(blkID)
		c.validator.Forget(blkID)
	}
	c.resetRolledBack(oldChain)

	c.metrics.headHeight.Set(float64(candidate.Height))
	c.metrics.committed.Add(float64(len(newChain)))
	if len(oldChain) > 0 {
		c.metrics.reorgs.Inc()
		c.metrics.reorgDepth.Observe(float64(len(oldChain)))
		c.log.Info("switched to fork",
			zap.Stringer("head", candidate.ID()),
			zap.Uint64("height", candidate.Height),
			zap.Stringer("forkPoint", forkPoint.ID()),
			zap.Int("rolledBack", len(oldChain)),
			zap.Int("committed", len(newChain)),
		)
	} else {
		c.log.Debug("extended chain",
			zap.Stringer("head", candidate.ID()),
			zap.Uint64("height", candidate.Height),
			zap.Int("committed", len(newChain)),
		)
	}
	return &ChainUpdate{
		Head:        candidate,
		Committed:   updates,
		Uncommitted: oldChain,
	}, nil
}

// prefer reports whether the chain ending at [candidate] is preferred over the
// chain ending at [head].
func (c *Controller) prefer(ctx context.Context, candidate, head *block.Block) (bool, error) {
	candidateWeight, err := c.engine.ChainWeight(ctx, candidate)
	if err != nil {
		return false, err
	}
	headWeight, err := c.engine.ChainWeight(ctx, head)
	if err != nil {
		return false, err
	}
	switch candidateWeight.Cmp(headWeight) {
	case 1:
		return true, nil
	case -1:
		return false, nil
	default:
		return c.engine.TieBreak(candidate, head).ID() == candidate.ID(), nil
	}
}

// findFork returns the blocks of the candidate chain after the fork point in
// ascending order, the blocks of the current chain after the fork point from
// the head down, and the fork point.
func (c *Controller) findFork(candidate, head *block.Block) ([]*block.Block, []*block.Block, *block.Block, error) {
	var (
		newChain []*block.Block
		oldChain []*block.Block
		newBlk   = candidate
		oldBlk   = head
		err      error
	)
	for newBlk.Height > oldBlk.Height {
		newChain = append(newChain, newBlk)
		if newBlk, err = c.parent(newBlk); err != nil {
			return nil, nil, nil, err
		}
	}
	for oldBlk.Height > newBlk.Height {
		oldChain = append(oldChain, oldBlk)
		if oldBlk, err = c.parent(oldBlk); err != nil {
			return nil, nil, nil, err
		}
	}
	for newBlk.ID() != oldBlk.ID() {
		newChain = append(newChain, newBlk)
		oldChain = append(oldChain, oldBlk)
		if newBlk, err = c.parent(newBlk); err != nil {
			return nil, nil, nil, err
		}
		if oldBlk, err = c.parent(oldBlk); err != nil {
			return nil, nil, nil, err
		}
	}
	for i, j := 0, len(newChain)-1; i < j; i, j = i+1, j-1 {
		newChain[i], newChain[j] = newChain[j], newChain[i]
	}
	return newChain, oldChain, newBlk, nil
}

func (c *Controller) parent(blk *block.Block) (*block.Block, error) {
	if blk.Height == 0 {
		return nil, fmt.Errorf("%w: reached genesis %s", ErrForkPointNotFound, blk.ID())
	}
	parent, err := c.cache.Get(blk.Parent())
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: missing ancestor %s", ErrForkPointNotFound, blk.Parent())
	}
	return parent, err
}

func (c *Controller) forkChoiceFailed(candidate *block.Block, err error) {
	c.metrics.forkChoiceFailures.Inc()
	c.log.Error("fork choice failed",
		zap.Stringer("candidate", candidate.ID()),
		zap.Uint64("height", candidate.Height),
		zap.Error(err),
	)
}

// resetRolledBack returns the blocks of [oldChain] to the cache as unvalidated
// blocks. Tracked descendants of them are validated again since their contexts
// were built on rolled back state.
func (c *Controller) resetRolledBack(oldChain []*block.Block) {
	rolledBack := set.NewSet[ids.ID](len(oldChain))
	for _, blk := range oldChain {
		blkID := blk.ID()
		rolledBack.Add(blkID)
		c.cache.Put(blk)
		c.validator.Forget(blkID)
	}

	tracked := make([]*blockState, 0, len(c.states))
	for _, st := range c.states {
		tracked = append(tracked, st)
	}
	slices.SortFunc(tracked, func(a, b *blockState) bool {
		return a.blk.Height < b.blk.Height
	})

	var requeue []*block.Block
	for _, st := range tracked {
		if st.status == invalid || !rolledBack.Contains(st.blk.Parent()) {
			continue
		}
		blkID := st.blk.ID()
		rolledBack.Add(blkID)
		switch {
		case st.submitted:
			st.stale = true
		case st.status == validUncommitted:
			c.executor.Discard(st.result.Context)
			c.validator.Forget(blkID)
			c.untrack(blkID)
			requeue = append(requeue, st.blk)
		}
	}
	for _, blk := range requeue {
		if err := c.queueBlock(blk); err != nil {
			c.log.Error("couldn't requeue block",
				zap.Stringer("blkID", blk.ID()),
				zap.Error(err),
			)
		}
	}
}
