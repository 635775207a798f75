// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
)

type testTxContext struct {
	values map[string][]byte
	events []execution.Event
}

func (c *testTxContext) Get(key []byte) ([]byte, error) {
	value, ok := c.values[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return value, nil
}

func (c *testTxContext) Put(key, value []byte) error {
	c.values[string(key)] = value
	return nil
}

func (c *testTxContext) Delete(key []byte) error {
	delete(c.values, string(key))
	return nil
}

func (c *testTxContext) AddEvent(event execution.Event) {
	c.events = append(c.events, event)
}

func (*testTxContext) AddReceiptData([]byte) {}

func TestHandler(t *testing.T) {
	require := require.New(t)
	key := secp256k1.TestKeys()[0]
	h := &Handler{}
	txCtx := &testTxContext{values: map[string][]byte{}}
	ctx := context.Background()

	put, err := NewPut(key, 0, []byte("a"), []byte("1"))
	require.NoError(err)
	require.NoError(h.Apply(ctx, txCtx, put))
	require.Equal([]byte("1"), txCtx.values["a"])
	require.Len(txCtx.events, 1)

	cas, err := NewCompareAndSet(key, 1, []byte("a"), []byte("2"), []byte("3"))
	require.NoError(err)
	require.ErrorIs(h.Apply(ctx, txCtx, cas), ErrCompareMismatch)

	cas, err = NewCompareAndSet(key, 2, []byte("a"), []byte("1"), []byte("3"))
	require.NoError(err)
	require.NoError(h.Apply(ctx, txCtx, cas))
	require.Equal([]byte("3"), txCtx.values["a"])

	del, err := NewDelete(key, 3, []byte("a"))
	require.NoError(err)
	require.NoError(h.Apply(ctx, txCtx, del))
	require.NotContains(txCtx.values, "a")

	empty, err := NewPut(key, 4, nil, []byte("1"))
	require.NoError(err)
	require.ErrorIs(h.Apply(ctx, txCtx, empty), ErrEmptyKey)
}

func TestParseOperation(t *testing.T) {
	require := require.New(t)

	op := &Operation{
		Op:    OpPut,
		Key:   []byte("key"),
		Value: []byte("value"),
	}
	parsed, err := ParseOperation(op.Bytes())
	require.NoError(err)
	require.Equal(op.Op, parsed.Op)
	require.Equal(op.Key, parsed.Key)
	require.Equal(op.Value, parsed.Value)

	_, err = ParseOperation(append(op.Bytes(), 0))
	require.ErrorIs(err, errTrailingBytes)

	bad := &Operation{Op: 9, Key: []byte("k")}
	require.ErrorIs((&Handler{}).Apply(context.Background(), &testTxContext{}, mustTx(t, bad)), ErrUnknownOp)
}

func mustTx(t *testing.T, op *Operation) *block.Transaction {
	tx, err := block.NewTransaction(secp256k1.TestKeys()[0], Family, 0, nil, op.Bytes())
	require.NoError(t, err)
	return tx
}
