// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package statedelta records the state changes of committed blocks and
// streams them to subscribers.
package statedelta

import (
	"context"

	"go.uber.org/zap"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/versiondb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/journal/feed"
	"github.com/ava-labs/journal/utils/logging"
)

var _ chain.Observer = (*Processor)(nil)

type Processor struct {
	log  logging.Logger
	db   database.Database
	feed *feed.Feed[*Delta]
}

func New(db database.Database, bufferSize int, log logging.Logger) *Processor {
	return &Processor{
		log:  log,
		db:   db,
		feed: feed.New[*Delta]("state_delta", bufferSize, log),
	}
}

// Subscribe streams the deltas of blocks committed from now on, restricted to
// keys under [prefixes]. No prefixes receives every change.
func (p *Processor) Subscribe(prefixes ...[]byte) *feed.Subscription[*Delta] {
	return p.feed.Subscribe(Filter(prefixes...))
}

// Get returns the changes made by the committed block [blkID].
func (p *Processor) Get(blkID ids.ID) (*Delta, error) {
	b, err := p.db.Get(blkID[:])
	if err != nil {
		return nil, err
	}
	changes, err := parseChanges(b)
	if err != nil {
		return nil, err
	}
	return &Delta{
		BlockID: blkID,
		Changes: changes,
	}, nil
}

// OnChainUpdated forgets the deltas of rolled back blocks, records the deltas
// of committed blocks and sends them to subscribers in height order.
func (p *Processor) OnChainUpdated(_ context.Context, update *chain.ChainUpdate) error {
	vdb := versiondb.New(p.db)
	for _, blk := range update.Uncommitted {
		blkID := blk.ID()
		if err := vdb.Delete(blkID[:]); err != nil {
			return err
		}
	}
	deltas := make([]*Delta, len(update.Committed))
	for i, blkUpdate := range update.Committed {
		blk := blkUpdate.Block
		deltas[i] = &Delta{
			BlockID:         blk.ID(),
			PreviousBlockID: blk.ParentID,
			Height:          blk.Height,
			StateRoot:       blk.StateRoot,
			Changes:         blkUpdate.Changes,
		}
		b, err := marshalChanges(blkUpdate.Changes)
		if err != nil {
			return err
		}
		if err := vdb.Put(deltas[i].BlockID[:], b); err != nil {
			return err
		}
	}
	if err := vdb.Commit(); err != nil {
		return err
	}

	for _, delta := range deltas {
		delivered := p.feed.Send(delta)
		p.log.Verbo("sent state delta",
			zap.Stringer("blkID", delta.BlockID),
			zap.Int("numChanges", len(delta.Changes)),
			zap.Int("numSubscribers", delivered),
		)
	}
	return nil
}

// Close closes every subscription.
func (p *Processor) Close() {
	p.feed.Close()
}
