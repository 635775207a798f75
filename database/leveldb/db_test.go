// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leveldb

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/dbtest"
	"github.com/ava-labs/journal/utils/logging"
)

func TestInterface(t *testing.T) {
	i := 0
	for name, test := range dbtest.Tests {
		i++
		folder := filepath.Join(t.TempDir(), fmt.Sprintf("db%d", i))
		t.Run(name, func(t *testing.T) {
			db, err := New(folder, nil, logging.NoLog{})
			require.NoError(t, err)

			test(t, db)

			// The database may have been closed by the test, so we don't care if it
			// errors here.
			_ = db.Close()
		})
	}
}

func TestReopen(t *testing.T) {
	require := require.New(t)

	folder := t.TempDir()
	db, err := New(folder, nil, logging.NoLog{})
	require.NoError(err)
	require.NoError(db.Put([]byte("head"), []byte("block")))
	require.NoError(db.Close())

	db, err = New(folder, nil, logging.NoLog{})
	require.NoError(err)
	defer db.Close()

	value, err := db.Get([]byte("head"))
	require.NoError(err)
	require.Equal([]byte("block"), value)

	_, err = db.Get([]byte("missing"))
	require.ErrorIs(err, database.ErrNotFound)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(t.TempDir(), []byte("{"), logging.NoLog{})
	require.ErrorIs(t, err, errInvalidConfig)
}
