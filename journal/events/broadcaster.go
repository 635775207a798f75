// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events streams block commit events and the events emitted by
// committed transactions.
package events

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/feed"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/set"
)

const (
	BlockCommitType = "block-commit"

	BlockIDAttribute         = "block_id"
	HeightAttribute          = "block_num"
	StateRootAttribute       = "state_root"
	PreviousBlockIDAttribute = "previous_block_id"
)

var _ chain.Observer = (*Broadcaster)(nil)

// BlockEvents are the events of one committed block, starting with its
// block-commit event, followed by the events of its receipts in order.
type BlockEvents struct {
	BlockID ids.ID
	Events  []execution.Event
}

type Broadcaster struct {
	log  logging.Logger
	feed *feed.Feed[*BlockEvents]
}

func New(bufferSize int, log logging.Logger) *Broadcaster {
	return &Broadcaster{
		log:  log,
		feed: feed.New[*BlockEvents]("events", bufferSize, log),
	}
}

// Subscribe streams the events of blocks committed from now on whose type is
// in [eventTypes]. No types receives every event. Blocks without matching
// events are skipped.
func (b *Broadcaster) Subscribe(eventTypes ...string) *feed.Subscription[*BlockEvents] {
	if len(eventTypes) == 0 {
		return b.feed.Subscribe(nil)
	}
	types := set.Of(eventTypes...)
	return b.feed.Subscribe(func(e *BlockEvents) (*BlockEvents, bool) {
		filtered := &BlockEvents{BlockID: e.BlockID}
		for _, event := range e.Events {
			if types.Contains(event.Type) {
				filtered.Events = append(filtered.Events, event)
			}
		}
		return filtered, len(filtered.Events) > 0
	})
}

func (b *Broadcaster) OnChainUpdated(_ context.Context, update *chain.ChainUpdate) error {
	for _, blkUpdate := range update.Committed {
		events := &BlockEvents{
			BlockID: blkUpdate.Block.ID(),
			Events:  []execution.Event{CommitEvent(blkUpdate.Block)},
		}
		for _, receipt := range blkUpdate.Receipts() {
			events.Events = append(events.Events, receipt.Events...)
		}
		delivered := b.feed.Send(events)
		b.log.Verbo("sent block events",
			zap.Stringer("blkID", events.BlockID),
			zap.Int("numEvents", len(events.Events)),
			zap.Int("numSubscribers", delivered),
		)
	}
	return nil
}

// Close closes every subscription.
func (b *Broadcaster) Close() {
	b.feed.Close()
}

// CommitEvent describes the commit of [blk].
func CommitEvent(blk *block.Block) execution.Event {
	return execution.Event{
		Type: BlockCommitType,
		Attributes: []execution.Attribute{
			{Key: BlockIDAttribute, Value: blk.ID().String()},
			{Key: HeightAttribute, Value: strconv.FormatUint(blk.Height, 10)},
			{Key: StateRootAttribute, Value: blk.StateRoot.String()},
			{Key: PreviousBlockIDAttribute, Value: blk.ParentID.String()},
		},
	}
}
