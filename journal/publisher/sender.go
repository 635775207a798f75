// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package publisher

import (
	"context"

	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/network"
)

var (
	_ Sender = (*NetworkSender)(nil)

	_ Submitter = (*NetworkSender)(nil)
)

// Submitter accepts blocks and batches produced or received locally. It is
// implemented by the completer.
type Submitter interface {
	SubmitBlock(ctx context.Context, blk *block.Block) error
	SubmitBatch(ctx context.Context, batch *block.Batch) error
}

// NetworkSender hands locally produced items to the local pipeline before
// broadcasting them, so the node processes its own blocks and batches the
// same way it processes those of its peers.
type NetworkSender struct {
	Local   Submitter
	Network network.Network
}

func (s *NetworkSender) SendBlock(ctx context.Context, blk *block.Block) error {
	return s.SubmitBlock(ctx, blk)
}

func (s *NetworkSender) SubmitBlock(ctx context.Context, blk *block.Block) error {
	if err := s.Local.SubmitBlock(ctx, blk); err != nil {
		return err
	}
	return s.Network.BroadcastBlock(ctx, blk)
}

func (s *NetworkSender) SubmitBatch(ctx context.Context, batch *block.Batch) error {
	if err := s.Local.SubmitBatch(ctx, batch); err != nil {
		return err
	}
	return s.Network.BroadcastBatch(ctx, batch)
}
