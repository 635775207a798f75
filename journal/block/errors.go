// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import "errors"

var (
	ErrInvalidSigner    = errors.New("invalid signer public key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNoTransactions   = errors.New("batch contains no transactions")
	ErrBatchIDMismatch  = errors.New("header batch IDs do not match batches")
	ErrDuplicateBatch   = errors.New("duplicate batch")
	ErrDuplicateTx      = errors.New("duplicate transaction")
	ErrGenesisParent    = errors.New("genesis block must have an empty parent")
	ErrEmptyFamily      = errors.New("transaction family is empty")
)
