// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"context"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
)

// ContextID identifies a speculative execution context in the manager's
// arena.
type ContextID uint64

// StateChange is a single key write produced by a sealed context.
type StateChange struct {
	Key    []byte
	Value  []byte
	Delete bool
}

type Attribute struct {
	Key   string
	Value string
}

// Event is emitted by a transaction handler and delivered to event
// subscribers once the block carrying it is committed.
type Event struct {
	Type       string
	Attributes []Attribute
	Data       []byte
}

// Receipt records the outcome of one transaction.
type Receipt struct {
	TxID    ids.ID
	Success bool
	// Error is the reason the transaction failed, empty on success.
	Error  string
	Events []Event
	Data   [][]byte
}

// BatchResult is the outcome of executing one batch. A batch is only Valid if
// every transaction in it succeeded; otherwise none of its writes are kept.
type BatchResult struct {
	BatchID  ids.ID
	Valid    bool
	Receipts []*Receipt
}

// Reader provides read access to state at some root.
//
// Get returns database.ErrNotFound if [key] has no value.
type Reader interface {
	Get(key []byte) ([]byte, error)
}

// TxContext is the view of state a Handler applies a transaction against.
// Writes are only visible to later transactions if the whole batch succeeds.
type TxContext interface {
	Reader

	Put(key, value []byte) error
	Delete(key []byte) error
	AddEvent(Event)
	AddReceiptData([]byte)
}

// Handler applies the transactions of one family.
//
// Apply returning an error fails the transaction, and with it the batch. It
// does not fail the block.
type Handler interface {
	Family() string
	Apply(ctx context.Context, txCtx TxContext, tx *block.Transaction) error
}
