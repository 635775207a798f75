// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ava-labs/journal/journal/block"
)

var errNoBatches = errors.New("genesis file has no batches")

// File is the on-disk form of the genesis batches.
type File struct {
	Batches [][]byte `json:"batches"`
}

// Marshal returns the genesis file executing [batches] in order.
func Marshal(batches []*block.Batch) ([]byte, error) {
	f := File{Batches: make([][]byte, len(batches))}
	for i, batch := range batches {
		f.Batches[i] = batch.Bytes()
	}
	return json.MarshalIndent(f, "", "\t")
}

// Parse decodes a genesis file and verifies the signatures of its batches.
func Parse(b []byte) ([]*block.Batch, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("couldn't unmarshal genesis file: %w", err)
	}
	if len(f.Batches) == 0 {
		return nil, errNoBatches
	}

	batches := make([]*block.Batch, len(f.Batches))
	for i, batchBytes := range f.Batches {
		batch, err := block.ParseBatch(batchBytes)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse genesis batch %d: %w", i, err)
		}
		if err := batch.Verify(); err != nil {
			return nil, fmt.Errorf("invalid genesis batch %d: %w", i, err)
		}
		batches[i] = batch
	}
	return batches, nil
}

// Load reads the genesis file at [path].
func Load(path string) ([]*block.Batch, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
