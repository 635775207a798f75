// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockstore persists the canonical chain.
package blockstore

import (
	"errors"
	"fmt"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/prefixdb"
	"github.com/ava-labs/journal/database/versiondb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
)

var (
	blockPrefix  = []byte("block")
	heightPrefix = []byte("height")
	txPrefix     = []byte("tx")
	batchPrefix  = []byte("batch")
	metaPrefix   = []byte("chain")

	headKey = []byte("head")

	errNotHead     = errors.New("old chain does not end at the current head")
	errNotAncestor = errors.New("new chain does not extend the fork point")
)

// Store holds the committed blocks of the canonical chain along with indexes
// from height, transaction ID and batch ID to block ID.
//
// Rolled back blocks are removed from the store.
type Store struct {
	*views

	db database.Database
}

func New(db database.Database) *Store {
	return &Store{
		views: newViews(db),
		db:    db,
	}
}

// Get returns the committed block with [blkID], or database.ErrNotFound.
func (s *Store) Get(blkID ids.ID) (*block.Block, error) {
	bytes, err := s.blocks.Get(blkID[:])
	if err != nil {
		return nil, err
	}
	blk, err := block.Parse(bytes)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse stored block %s: %w", blkID, err)
	}
	return blk, nil
}

func (s *Store) Has(blkID ids.ID) (bool, error) {
	return s.blocks.Has(blkID[:])
}

// ChainHead returns the last committed block, or database.ErrNotFound if no
// block was committed yet.
func (s *Store) ChainHead() (*block.Block, error) {
	headID, err := database.GetID(s.meta, headKey)
	if err != nil {
		return nil, err
	}
	return s.Get(headID)
}

func (s *Store) GetIDByHeight(height uint64) (ids.ID, error) {
	return database.GetID(s.heights, database.PackUInt64(height))
}

func (s *Store) GetByHeight(height uint64) (*block.Block, error) {
	blkID, err := s.GetIDByHeight(height)
	if err != nil {
		return nil, err
	}
	return s.Get(blkID)
}

// HasTransaction reports whether [txID] is part of a committed block.
func (s *Store) HasTransaction(txID ids.ID) (bool, error) {
	return s.txs.Has(txID[:])
}

func (s *Store) HasBatch(batchID ids.ID) (bool, error) {
	return s.batches.Has(batchID[:])
}

// TransactionBlock returns the ID of the committed block containing [txID].
func (s *Store) TransactionBlock(txID ids.ID) (ids.ID, error) {
	return database.GetID(s.txs, txID[:])
}

// BatchBlock returns the ID of the committed block containing [batchID].
func (s *Store) BatchBlock(batchID ids.ID) (ids.ID, error) {
	return database.GetID(s.batches, batchID[:])
}

// Update returns an unwritten batch that removes [oldChain] and appends
// [newChain] to the canonical chain.
//
// [oldChain] must be ordered from the current head down to, but excluding,
// the fork point. [newChain] must be ordered from the block after the fork
// point up to the new head.
func (s *Store) Update(newChain, oldChain []*block.Block) (database.Batch, error) {
	headID, err := database.GetID(s.meta, headKey)
	hasHead := err == nil
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	// forkID is the block [newChain] must build on.
	forkID := headID
	if len(oldChain) > 0 {
		if !hasHead || oldChain[0].ID() != headID {
			return nil, fmt.Errorf("%w: %s", errNotHead, oldChain[0].ID())
		}
		forkID = oldChain[len(oldChain)-1].Parent()
	}
	for i, blk := range newChain {
		expectedParent := forkID
		if i > 0 {
			expectedParent = newChain[i-1].ID()
		}
		if !hasHead && i == 0 {
			expectedParent = ids.Empty
		}
		if blk.Parent() != expectedParent {
			return nil, fmt.Errorf("%w: %s", errNotAncestor, blk.ID())
		}
	}

	vdb := versiondb.New(s.db)
	v := newViews(vdb)
	for _, blk := range oldChain {
		if err := v.remove(blk); err != nil {
			return nil, err
		}
	}
	for _, blk := range newChain {
		if err := v.add(blk); err != nil {
			return nil, err
		}
	}
	if len(newChain) > 0 {
		if err := database.PutID(v.meta, headKey, newChain[len(newChain)-1].ID()); err != nil {
			return nil, err
		}
	}
	return vdb.CommitBatch()
}

// Write applies Update directly.
func (s *Store) Write(newChain, oldChain []*block.Block) error {
	batch, err := s.Update(newChain, oldChain)
	if err != nil {
		return err
	}
	return batch.Write()
}

type views struct {
	blocks  database.Database
	heights database.Database
	txs     database.Database
	batches database.Database
	meta    database.Database
}

// newViews opens the store's key spaces over [db]. Prefixes are not
// compressed so views over a versiondb produce the keys of views over the
// underlying database.
func newViews(db database.Database) *views {
	return &views{
		blocks:  prefixdb.NewNested(blockPrefix, db),
		heights: prefixdb.NewNested(heightPrefix, db),
		txs:     prefixdb.NewNested(txPrefix, db),
		batches: prefixdb.NewNested(batchPrefix, db),
		meta:    prefixdb.NewNested(metaPrefix, db),
	}
}

func (v *views) add(blk *block.Block) error {
	blkID := blk.ID()
	if err := v.blocks.Put(blkID[:], blk.Bytes()); err != nil {
		return err
	}
	if err := database.PutID(v.heights, database.PackUInt64(blk.Height), blkID); err != nil {
		return err
	}
	for _, batch := range blk.Batches {
		batchID := batch.ID()
		if err := database.PutID(v.batches, batchID[:], blkID); err != nil {
			return err
		}
		for _, txID := range batch.TxIDs() {
			if err := database.PutID(v.txs, txID[:], blkID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *views) remove(blk *block.Block) error {
	blkID := blk.ID()
	if err := v.blocks.Delete(blkID[:]); err != nil {
		return err
	}
	if err := v.heights.Delete(database.PackUInt64(blk.Height)); err != nil {
		return err
	}
	for _, batch := range blk.Batches {
		batchID := batch.ID()
		if err := v.batches.Delete(batchID[:]); err != nil {
			return err
		}
		for _, txID := range batch.TxIDs() {
			if err := v.txs.Delete(txID[:]); err != nil {
				return err
			}
		}
	}
	return nil
}
