// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"

	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
)

// BlockUpdate is a block that became part of the canonical chain.
type BlockUpdate struct {
	Block   *block.Block
	Results []*execution.BatchResult
	Changes []execution.StateChange
}

// Receipts returns the receipts of every transaction in the block in order.
func (u *BlockUpdate) Receipts() []*execution.Receipt {
	var receipts []*execution.Receipt
	for _, result := range u.Results {
		receipts = append(receipts, result.Receipts...)
	}
	return receipts
}

// ChainUpdate describes one change of the chain head.
type ChainUpdate struct {
	Head *block.Block
	// Committed are the blocks added to the canonical chain, ordered by
	// height.
	Committed []*BlockUpdate
	// Uncommitted are the blocks removed from the canonical chain, ordered
	// from the old head down.
	Uncommitted []*block.Block
}

// Reorg reports whether the update removed blocks from the canonical chain.
func (u *ChainUpdate) Reorg() bool {
	return len(u.Uncommitted) > 0
}

// Observer is notified of every chain update after it is durable. Observers
// are called in registration order from a single goroutine. A returned error
// is logged and the remaining observers are still called.
type Observer interface {
	OnChainUpdated(ctx context.Context, update *ChainUpdate) error
}
