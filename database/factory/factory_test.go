// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database/corruptabledb"
	"github.com/ava-labs/journal/database/leveldb"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/database/versiondb"
	"github.com/ava-labs/journal/utils/logging"
)

func TestNewDatabase(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected any
	}{
		{
			name:     "memdb",
			config:   DatabaseConfig{Name: memdb.Name},
			expected: &corruptabledb.Database{},
		},
		{
			name:     "leveldb",
			config:   DatabaseConfig{Name: leveldb.Name},
			expected: &corruptabledb.Database{},
		},
		{
			name: "read only leveldb",
			config: DatabaseConfig{
				Name:     leveldb.Name,
				ReadOnly: true,
			},
			expected: &versiondb.Database{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			config := test.config
			config.Path = t.TempDir()
			db, err := NewDatabase(config, logging.NoLog{})
			require.NoError(err)
			require.IsType(test.expected, db)
			require.NoError(db.Close())
		})
	}
}

func TestUnknownDatabase(t *testing.T) {
	_, err := NewDatabase(DatabaseConfig{Name: "rocksdb"}, logging.NoLog{})
	require.ErrorContains(t, err, "rocksdb")
}
