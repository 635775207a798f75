// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/ids"
)

func TestReceiptBytes(t *testing.T) {
	require := require.New(t)

	receipt := &Receipt{
		TxID:    ids.GenerateTestID(),
		Success: true,
		Events: []Event{
			{
				Type: "kv/update",
				Attributes: []Attribute{
					{Key: "key", Value: "a"},
				},
				Data: []byte{1},
			},
		},
		Data: [][]byte{{2, 3}},
	}
	b, err := receipt.Bytes()
	require.NoError(err)

	parsed, err := ParseReceipt(b)
	require.NoError(err)
	require.Equal(receipt, parsed)

	_, err = ParseReceipt(append(b, 0))
	require.ErrorIs(err, errReceiptTrailingBytes)
}

func TestUndoRecordBytes(t *testing.T) {
	require := require.New(t)

	rec := &undoRecord{
		parent: ids.GenerateTestID(),
		seq:    7,
		priors: map[string]prior{
			"a": {value: []byte("1"), exists: true},
			"b": {},
		},
	}
	b, err := rec.Bytes()
	require.NoError(err)

	parsed, err := parseUndoRecord(b)
	require.NoError(err)
	require.Equal(rec.parent, parsed.parent)
	require.Equal(rec.seq, parsed.seq)
	require.Len(parsed.priors, 2)
	require.True(parsed.priors["a"].exists)
	require.Equal([]byte("1"), parsed.priors["a"].value)
	require.False(parsed.priors["b"].exists)
}
