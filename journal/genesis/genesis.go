// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package genesis creates block 0 of a new chain.
package genesis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

var (
	ErrChainExists   = errors.New("chain already has a genesis block")
	ErrStateNotEmpty = errors.New("committed state is not empty")
	ErrInvalidBatch  = errors.New("genesis batch failed")
)

type Store interface {
	ChainHead() (*block.Block, error)
	Update(newChain, oldChain []*block.Block) (database.Batch, error)
}

type Executor interface {
	CommittedRoot() ids.ID
	CreateContext(baseRoot ids.ID) (execution.ContextID, error)
	Execute(ctx context.Context, id execution.ContextID, batch *block.Batch) (*execution.BatchResult, error)
	Seal(id execution.ContextID) (ids.ID, []execution.StateChange, error)
	Discard(id execution.ContextID)
	Squash(forkRoot ids.ID, contextIDs []execution.ContextID) (*execution.Squash, error)
	Commit(sq *execution.Squash, extras ...database.Batch) error
}

// Controller builds the genesis block out of a fixed list of batches and
// commits it on an empty chain.
type Controller struct {
	log      logging.Logger
	store    Store
	executor Executor
	key      *secp256k1.PrivateKey
	batches  []*block.Batch
}

func New(
	batches []*block.Batch,
	store Store,
	executor Executor,
	key *secp256k1.PrivateKey,
	log logging.Logger,
) *Controller {
	return &Controller{
		log:      log,
		store:    store,
		executor: executor,
		key:      key,
		batches:  batches,
	}
}

// Batches returns the batches the genesis block is built from.
func (c *Controller) Batches() []*block.Batch {
	return c.batches
}

// RequiresGenesis reports whether no block has been committed yet.
func (c *Controller) RequiresGenesis() (bool, error) {
	_, err := c.store.ChainHead()
	switch {
	case errors.Is(err, database.ErrNotFound):
		return true, nil
	case err != nil:
		return false, err
	default:
		return false, nil
	}
}

// Start commits the genesis block and then calls [onComplete]. Every batch
// must succeed.
func (c *Controller) Start(ctx context.Context, onComplete func(context.Context) error) error {
	required, err := c.RequiresGenesis()
	if err != nil {
		return err
	}
	if !required {
		return ErrChainExists
	}
	if root := c.executor.CommittedRoot(); root != ids.Empty {
		return fmt.Errorf("%w: %s", ErrStateNotEmpty, root)
	}

	genesis, err := c.commit(ctx)
	if err != nil {
		return err
	}
	c.log.Info("committed genesis block",
		zap.Stringer("blkID", genesis.ID()),
		zap.Stringer("stateRoot", genesis.StateRoot),
		zap.Int("numBatches", len(genesis.Batches)),
	)
	return onComplete(ctx)
}

func (c *Controller) commit(ctx context.Context) (*block.Block, error) {
	contextID, err := c.executor.CreateContext(ids.Empty)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			c.executor.Discard(contextID)
		}
	}()

	for _, batch := range c.batches {
		result, err := c.executor.Execute(ctx, contextID, batch)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, fmt.Errorf("%w: %s", ErrInvalidBatch, batch.ID())
		}
	}
	root, _, err := c.executor.Seal(contextID)
	if err != nil {
		return nil, err
	}

	genesis, err := block.Build(ids.Empty, 0, root, nil, c.batches, c.key)
	if err != nil {
		return nil, err
	}
	sq, err := c.executor.Squash(ids.Empty, []execution.ContextID{contextID})
	if err != nil {
		return nil, err
	}
	storeBatch, err := c.store.Update([]*block.Block{genesis}, nil)
	if err != nil {
		return nil, err
	}
	if err := c.executor.Commit(sq, storeBatch); err != nil {
		return nil, err
	}
	committed = true
	return genesis, nil
}
