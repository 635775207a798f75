// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/corruptabledb"
	"github.com/ava-labs/journal/database/leveldb"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/database/versiondb"
	"github.com/ava-labs/journal/utils/logging"
)

type DatabaseConfig struct {
	// If true, all writes are to memory and are discarded at shutdown.
	ReadOnly bool `json:"readOnly"`

	// Path to database
	Path string `json:"path"`

	// Name of the database type to use
	Name string `json:"name"`

	// Raw JSON config handed to the database implementation
	Config []byte `json:"-"`
}

// NewDatabase creates a new database instance based on the provided
// configuration. It supports LevelDB and MemDB, and wraps the result with a
// corruptable DB.
func NewDatabase(dbConfig DatabaseConfig, logger logging.Logger) (database.Database, error) {
	var (
		db  database.Database
		err error
	)
	switch dbConfig.Name {
	case leveldb.Name:
		db, err = leveldb.New(dbConfig.Path, dbConfig.Config, logger)
		if err != nil {
			return nil, fmt.Errorf("couldn't create %s at %s: %w", leveldb.Name, dbConfig.Path, err)
		}
	case memdb.Name:
		db = memdb.New()
	default:
		return nil, fmt.Errorf(
			"db-type was %q but should have been one of {%s, %s}",
			dbConfig.Name,
			leveldb.Name,
			memdb.Name,
		)
	}

	// Wrap with corruptable DB
	db = corruptabledb.New(db)

	if dbConfig.ReadOnly && dbConfig.Name != memdb.Name {
		db = versiondb.New(db)
	}

	logger.Info("opened database",
		zap.String("name", dbConfig.Name),
		zap.Bool("readOnly", dbConfig.ReadOnly),
	)
	return db, nil
}
