// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validator

import (
	"errors"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
)

// Verdict is the outcome of validating a block.
type Verdict byte

const (
	// Unknown means the block could not be judged, for example because its
	// parent is missing or execution faulted. It may be validated again.
	Unknown Verdict = iota
	Valid
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is delivered for every validated block.
//
// If the verdict is Valid the execution context holding the block's writes is
// owned by the receiver, which must eventually squash or discard it.
type Result struct {
	Block   *block.Block
	Verdict Verdict
	// Err is the reason the block is not Valid.
	Err error

	StateRoot    ids.ID
	Context      execution.ContextID
	BatchResults []*execution.BatchResult
	Changes      []execution.StateChange
}

// Fault reports whether validation was aborted by a failure of the node rather
// than of the block.
func (r *Result) Fault() bool {
	return errors.Is(r.Err, ErrExecutionFault)
}

// Receipts returns the receipts of every transaction in the block in order.
func (r *Result) Receipts() []*execution.Receipt {
	var receipts []*execution.Receipt
	for _, batch := range r.BatchResults {
		receipts = append(receipts, batch.Receipts...)
	}
	return receipts
}
