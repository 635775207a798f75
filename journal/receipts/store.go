// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package receipts stores the receipts of transactions in the canonical
// chain.
package receipts

import (
	"context"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/versiondb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/execution"
)

var _ chain.Observer = (*Store)(nil)

// Store keeps one receipt per committed transaction. Receipts of rolled back
// blocks are removed.
type Store struct {
	db database.Database
}

func New(db database.Database) *Store {
	return &Store{db: db}
}

// Get returns database.ErrNotFound if [txID] is not committed.
func (s *Store) Get(txID ids.ID) (*execution.Receipt, error) {
	b, err := s.db.Get(txID[:])
	if err != nil {
		return nil, err
	}
	return execution.ParseReceipt(b)
}

func (s *Store) Has(txID ids.ID) (bool, error) {
	return s.db.Has(txID[:])
}

func (s *Store) OnChainUpdated(_ context.Context, update *chain.ChainUpdate) error {
	vdb := versiondb.New(s.db)
	for _, blk := range update.Uncommitted {
		for _, txID := range blk.TxIDs() {
			if err := vdb.Delete(txID[:]); err != nil {
				return err
			}
		}
	}
	for _, blkUpdate := range update.Committed {
		for _, receipt := range blkUpdate.Receipts() {
			b, err := receipt.Bytes()
			if err != nil {
				return err
			}
			if err := vdb.Put(receipt.TxID[:], b); err != nil {
				return err
			}
		}
	}
	return vdb.Commit()
}
