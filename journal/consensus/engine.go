// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus defines the rules a block must satisfy beyond structure
// and execution, and how competing chains are weighed.
package consensus

import (
	"context"
	"math/big"

	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
)

// Engine is implemented by every consensus mechanism.
type Engine interface {
	// VerifyBlock checks the consensus rules of [blk] on top of [parent].
	// [state] reads the state at the parent's state root. A returned error
	// makes the block invalid.
	VerifyBlock(ctx context.Context, blk, parent *block.Block, state execution.Reader) error

	// ChainWeight returns the weight of the chain ending at [blk]. The chain
	// with the greater weight is preferred.
	ChainWeight(ctx context.Context, blk *block.Block) (*big.Int, error)

	// TieBreak returns the preferred of two blocks whose chains have equal
	// weight. It must be deterministic and independent of argument order.
	TieBreak(a, b *block.Block) *block.Block

	// Payload returns the consensus payload of a block built on [parent] by
	// this node.
	Payload(ctx context.Context, parent *block.Block, state execution.Reader) ([]byte, error)
}
