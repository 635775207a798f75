// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"golang.org/x/exp/slices"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/utils/hashing"
	"github.com/ava-labs/journal/utils/wrappers"
)

// ComputeRoot returns the state root reached by applying [changes] on top of
// [baseRoot]. [changes] must be sorted by key.
//
// The root commits to the whole history of writes, so two contexts reach the
// same root only if they started from the same root and wrote the same
// values.
func ComputeRoot(baseRoot ids.ID, changes []StateChange) ids.ID {
	size := ids.IDLen
	for _, change := range changes {
		size += wrappers.IntLen + len(change.Key) + wrappers.BoolLen + wrappers.IntLen + len(change.Value)
	}
	p := wrappers.Packer{
		MaxSize: size,
		Bytes:   make([]byte, 0, size),
	}
	p.PackFixedBytes(baseRoot[:])
	for _, change := range changes {
		p.PackBytes(change.Key)
		p.PackBool(change.Delete)
		p.PackBytes(change.Value)
	}
	return hashing.ComputeHash256Array(p.Bytes)
}

func sortedChanges(writes map[string]*write) []StateChange {
	changes := make([]StateChange, 0, len(writes))
	for key, w := range writes {
		changes = append(changes, StateChange{
			Key:    []byte(key),
			Value:  w.value,
			Delete: w.deleted,
		})
	}
	slices.SortFunc(changes, func(a, b StateChange) bool {
		return string(a.Key) < string(b.Key)
	})
	return changes
}
