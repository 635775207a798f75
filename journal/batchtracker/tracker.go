// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package batchtracker reports the status of submitted batches.
package batchtracker

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/ava-labs/journal/cache"
	"github.com/ava-labs/journal/cache/lru"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/chain"
	"github.com/ava-labs/journal/utils/set"
)

const DefaultInvalidCacheSize = 4096

var _ chain.Observer = (*Tracker)(nil)

type Status uint8

const (
	Unknown Status = iota
	Pending
	Committed
	Invalid
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type Store interface {
	HasBatch(batchID ids.ID) (bool, error)
}

// Tracker follows batches from submission until they are committed or
// dropped.
type Tracker struct {
	store Store

	lock    sync.Mutex
	pending set.Set[ids.ID]
	// invalid maps recently dropped batches to the reason they were dropped.
	invalid cache.Cacher[ids.ID, string]
	// changed is closed and replaced whenever a batch stops being pending.
	changed chan struct{}
}

func New(store Store, invalidCacheSize int) *Tracker {
	if invalidCacheSize <= 0 {
		invalidCacheSize = DefaultInvalidCacheSize
	}
	return &Tracker{
		store:   store,
		pending: set.Set[ids.ID]{},
		invalid: lru.NewCache[ids.ID, string](invalidCacheSize),
		changed: make(chan struct{}),
	}
}

// OnBatchReceived marks [batch] as pending.
func (t *Tracker) OnBatchReceived(batch *block.Batch) {
	t.lock.Lock()
	defer t.lock.Unlock()

	batchID := batch.ID()
	t.invalid.Evict(batchID)
	t.pending.Add(batchID)
}

// OnBatchInvalid marks [batchID] as dropped for [reason].
func (t *Tracker) OnBatchInvalid(batchID ids.ID, reason string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.pending.Remove(batchID)
	t.invalid.Put(batchID, reason)
	t.notify()
}

func (t *Tracker) OnChainUpdated(_ context.Context, update *chain.ChainUpdate) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	// Batches of the old chain that the new chain includes again are
	// committed.
	for _, blk := range update.Uncommitted {
		t.pending.Add(blk.BatchIDs...)
	}
	for _, blkUpdate := range update.Committed {
		for _, batchID := range blkUpdate.Block.BatchIDs {
			t.pending.Remove(batchID)
			t.invalid.Evict(batchID)
		}
	}
	t.notify()
	return nil
}

// Status returns the status of [batchID] and the reason it was dropped if it
// is Invalid.
func (t *Tracker) Status(batchID ids.ID) (Status, string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.status(batchID)
}

func (t *Tracker) status(batchID ids.ID) (Status, string, error) {
	if t.pending.Contains(batchID) {
		return Pending, "", nil
	}
	committed, err := t.store.HasBatch(batchID)
	if err != nil {
		return Unknown, "", err
	}
	if committed {
		return Committed, "", nil
	}
	if reason, ok := t.invalid.Get(batchID); ok {
		return Invalid, reason, nil
	}
	return Unknown, "", nil
}

// Wait blocks until none of [batchIDs] is pending and returns their statuses.
// If [ctx] is done first, the current statuses are returned with the context
// error.
func (t *Tracker) Wait(ctx context.Context, batchIDs ...ids.ID) ([]Status, error) {
	for {
		t.lock.Lock()
		statuses := make([]Status, len(batchIDs))
		for i, batchID := range batchIDs {
			var err error
			statuses[i], _, err = t.status(batchID)
			if err != nil {
				t.lock.Unlock()
				return nil, err
			}
		}
		changed := t.changed
		t.lock.Unlock()

		if !slices.Contains(statuses, Pending) {
			return statuses, nil
		}
		select {
		case <-ctx.Done():
			return statuses, ctx.Err()
		case <-changed:
		}
	}
}

func (t *Tracker) notify() {
	close(t.changed)
	t.changed = make(chan struct{})
}
