// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package network defines what the journal needs from the peer-to-peer
// layer.
package network

import (
	"context"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
)

// Network sends best-effort requests and broadcasts to peers. Responses to
// requests arrive out of band through the journal's submit methods and may
// never arrive at all.
type Network interface {
	// RequestBlock asks peers for the block with [blkID].
	RequestBlock(ctx context.Context, blkID ids.ID) error
	// RequestBatchByTransactionID asks peers for the batch containing
	// [txID].
	RequestBatchByTransactionID(ctx context.Context, txID ids.ID) error
	BroadcastBlock(ctx context.Context, blk *block.Block) error
	BroadcastBatch(ctx context.Context, batch *block.Batch) error
}

// NoOp drops every request and broadcast. It is used by nodes running without
// peers.
type NoOp struct{}

func (NoOp) RequestBlock(context.Context, ids.ID) error {
	return nil
}

func (NoOp) RequestBatchByTransactionID(context.Context, ids.ID) error {
	return nil
}

func (NoOp) BroadcastBlock(context.Context, *block.Block) error {
	return nil
}

func (NoOp) BroadcastBatch(context.Context, *block.Batch) error {
	return nil
}
