// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/config"
	"github.com/ava-labs/journal/database/factory"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/journal"
	"github.com/ava-labs/journal/journal/batchtracker"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution/kv"
	"github.com/ava-labs/journal/utils/logging"
)

func TestNodeBuildsBlocks(t *testing.T) {
	require := require.New(t)
	dataDir := t.TempDir()
	keyPath := filepath.Join(dataDir, "keys", "validator.key")

	key, err := config.LoadKey(keyPath)
	require.NoError(err)
	putBatch := func(nonce uint64, k, v string) *block.Batch {
		tx, err := kv.NewPut(key, nonce, []byte(k), []byte(v))
		require.NoError(err)
		batch, err := block.NewBatch(key, []*block.Transaction{tx})
		require.NoError(err)
		return batch
	}

	a, err := New(config.Config{
		DataDir:        dataDir,
		KeyPath:        keyPath,
		DatabaseConfig: factory.DatabaseConfig{Name: memdb.Name},
		LoggingConfig: logging.Config{
			RotatingWriterConfig: logging.RotatingWriterConfig{
				Directory: filepath.Join(dataDir, "logs"),
			},
			DisableWriterDisplaying: true,
			LogLevel:                logging.Off,
			DisplayLevel:            logging.Off,
		},
		BuildInterval: 10 * time.Millisecond,
		JournalConfig: journal.Config{
			Genesis: []*block.Batch{putBatch(1, "genesis", "node")},
		},
	})
	require.NoError(err)
	require.NoError(a.Start())

	n := a.(*node)
	batch := putBatch(2, "k", "v")
	require.NoError(n.journal.SubmitLocalBatch(context.Background(), batch))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	statuses, err := n.journal.Batches.Wait(ctx, batch.ID())
	require.NoError(err)
	require.Equal([]batchtracker.Status{batchtracker.Committed}, statuses)

	require.NoError(a.Stop())
	require.NoError(a.Stop())
	exitCode, err := a.ExitCode()
	require.NoError(err)
	require.Zero(exitCode)
}
