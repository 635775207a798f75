// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kv implements a transaction family that writes raw keys.
//
// It is the default family of the journal and is also used to store the
// on-chain settings read by the consensus engine.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/wrappers"
)

const (
	Family = "kv"

	maxKeyLen = 1024
)

const (
	OpPut byte = iota
	OpDelete
	// OpCompareAndSet fails the transaction unless the key currently holds
	// [Expected].
	OpCompareAndSet
)

var (
	_ execution.Handler = (*Handler)(nil)

	ErrEmptyKey        = errors.New("empty key")
	ErrKeyTooLong      = errors.New("key too long")
	ErrUnknownOp       = errors.New("unknown operation")
	ErrCompareMismatch = errors.New("current value does not match expected value")
	errTrailingBytes   = errors.New("trailing bytes after operation")
)

// Operation is the payload of a kv transaction.
type Operation struct {
	Op       byte
	Key      []byte
	Value    []byte
	Expected []byte
}

func (o *Operation) Bytes() []byte {
	p := wrappers.Packer{
		MaxSize: block.MaxSize,
		Bytes:   make([]byte, 0, 1+3*wrappers.IntLen+len(o.Key)+len(o.Value)+len(o.Expected)),
	}
	p.PackByte(o.Op)
	p.PackBytes(o.Key)
	p.PackBytes(o.Value)
	p.PackBytes(o.Expected)
	return p.Bytes
}

func ParseOperation(b []byte) (*Operation, error) {
	p := wrappers.Packer{Bytes: b}
	o := &Operation{
		Op:       p.UnpackByte(),
		Key:      p.UnpackLimitedBytes(maxKeyLen),
		Value:    p.UnpackBytes(),
		Expected: p.UnpackBytes(),
	}
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, errTrailingBytes
	}
	return o, nil
}

// Handler applies kv operations.
type Handler struct{}

func (*Handler) Family() string {
	return Family
}

func (*Handler) Apply(_ context.Context, txCtx execution.TxContext, tx *block.Transaction) error {
	op, err := ParseOperation(tx.Payload)
	if err != nil {
		return fmt.Errorf("couldn't parse operation: %w", err)
	}
	if len(op.Key) == 0 {
		return ErrEmptyKey
	}

	switch op.Op {
	case OpPut:
		err = txCtx.Put(op.Key, op.Value)
	case OpDelete:
		err = txCtx.Delete(op.Key)
	case OpCompareAndSet:
		current, getErr := txCtx.Get(op.Key)
		if getErr != nil && len(op.Expected) != 0 {
			return fmt.Errorf("%w: %w", ErrCompareMismatch, getErr)
		}
		if string(current) != string(op.Expected) {
			return ErrCompareMismatch
		}
		err = txCtx.Put(op.Key, op.Value)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOp, op.Op)
	}
	if err != nil {
		return err
	}

	txCtx.AddEvent(execution.Event{
		Type: "kv/update",
		Attributes: []execution.Attribute{
			{Key: "key", Value: string(op.Key)},
		},
	})
	return nil
}

// NewPut returns a signed transaction writing [value] at [key].
func NewPut(key *secp256k1.PrivateKey, nonce uint64, k, value []byte, deps ...ids.ID) (*block.Transaction, error) {
	op := &Operation{
		Op:    OpPut,
		Key:   k,
		Value: value,
	}
	return block.NewTransaction(key, Family, nonce, deps, op.Bytes())
}

// NewDelete returns a signed transaction removing [k].
func NewDelete(key *secp256k1.PrivateKey, nonce uint64, k []byte, deps ...ids.ID) (*block.Transaction, error) {
	op := &Operation{
		Op:  OpDelete,
		Key: k,
	}
	return block.NewTransaction(key, Family, nonce, deps, op.Bytes())
}

// NewCompareAndSet returns a signed transaction that writes [value] at [k] only
// if [k] currently holds [expected].
func NewCompareAndSet(key *secp256k1.PrivateKey, nonce uint64, k, expected, value []byte) (*block.Transaction, error) {
	op := &Operation{
		Op:       OpCompareAndSet,
		Key:      k,
		Value:    value,
		Expected: expected,
	}
	return block.NewTransaction(key, Family, nonce, nil, op.Bytes())
}
