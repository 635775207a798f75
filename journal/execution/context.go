// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"errors"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
)

type write struct {
	value   []byte
	deleted bool
}

// executionContext holds the writes of one block on top of [baseRoot].
//
// Once sealed its writes are immutable and it may be used as the parent of
// other contexts.
type executionContext struct {
	id       ContextID
	baseRoot ids.ID

	// parent is nil if [baseRoot] is a committed root.
	parent atomic.Pointer[executionContext]
	// committed is set once the context's writes are durable at [root].
	committed atomic.Bool

	writes map[string]*write

	sealed  bool
	root    ids.ID
	changes []StateChange
}

func (c *executionContext) get(m *Manager, key []byte) ([]byte, error) {
	k := string(key)
	for ctx := c; ; {
		if ctx.committed.Load() {
			return m.readCommitted(ctx.root, key)
		}
		if w, ok := ctx.writes[k]; ok {
			if w.deleted {
				return nil, database.ErrNotFound
			}
			return slices.Clone(w.value), nil
		}
		next := ctx.parent.Load()
		if next == nil {
			return m.readCommitted(ctx.baseRoot, key)
		}
		ctx = next
	}
}

// txContext buffers the writes of a single batch so a failed transaction can
// discard all of them.
type txContext struct {
	manager *Manager
	ctx     *executionContext
	writes  map[string]*write

	events []Event
	data   [][]byte
	// fault is the first storage error hit while reading. It aborts the
	// block rather than failing the transaction.
	fault error
}

func newTxContext(m *Manager, ctx *executionContext) *txContext {
	return &txContext{
		manager: m,
		ctx:     ctx,
		writes:  make(map[string]*write),
	}
}

func (t *txContext) Get(key []byte) ([]byte, error) {
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, database.ErrNotFound
		}
		return slices.Clone(w.value), nil
	}
	value, err := t.ctx.get(t.manager, key)
	if err != nil && !errors.Is(err, database.ErrNotFound) && t.fault == nil {
		t.fault = err
	}
	return value, err
}

func (t *txContext) Put(key, value []byte) error {
	t.writes[string(key)] = &write{value: slices.Clone(value)}
	return nil
}

func (t *txContext) Delete(key []byte) error {
	t.writes[string(key)] = &write{deleted: true}
	return nil
}

func (t *txContext) AddEvent(event Event) {
	t.events = append(t.events, event)
}

func (t *txContext) AddReceiptData(data []byte) {
	t.data = append(t.data, slices.Clone(data))
}

// takeOutput returns the events and data recorded for the current
// transaction and resets them for the next one.
func (t *txContext) takeOutput() ([]Event, [][]byte) {
	events, data := t.events, t.data
	t.events, t.data = nil, nil
	return events, data
}
