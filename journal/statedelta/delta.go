// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package statedelta

import (
	"bytes"
	"errors"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/wrappers"
)

const maxDeltaSize = 1 << 28

var errTrailingBytes = errors.New("trailing bytes after state changes")

// Delta is the set of state changes made by one committed block.
type Delta struct {
	BlockID         ids.ID
	PreviousBlockID ids.ID
	Height          uint64
	StateRoot       ids.ID
	Changes         []execution.StateChange
}

// Filter returns a filter keeping the changes whose key starts with one of
// [prefixes]. Deltas are always delivered, even without matching changes, so
// subscribers learn about every block.
func Filter(prefixes ...[]byte) func(*Delta) (*Delta, bool) {
	return func(d *Delta) (*Delta, bool) {
		if len(prefixes) == 0 {
			return d, true
		}
		filtered := *d
		filtered.Changes = nil
		for _, change := range d.Changes {
			for _, prefix := range prefixes {
				if bytes.HasPrefix(change.Key, prefix) {
					filtered.Changes = append(filtered.Changes, change)
					break
				}
			}
		}
		return &filtered, true
	}
}

func marshalChanges(changes []execution.StateChange) ([]byte, error) {
	p := wrappers.Packer{
		MaxSize: maxDeltaSize,
		Bytes:   make([]byte, 0, 64*len(changes)+4),
	}
	p.PackInt(uint32(len(changes)))
	for _, change := range changes {
		p.PackBytes(change.Key)
		p.PackBool(change.Delete)
		if !change.Delete {
			p.PackBytes(change.Value)
		}
	}
	return p.Bytes, p.Err
}

func parseChanges(b []byte) ([]execution.StateChange, error) {
	p := wrappers.Packer{Bytes: b}
	count := p.UnpackInt()
	var changes []execution.StateChange
	for i := uint32(0); i < count && !p.Errored(); i++ {
		change := execution.StateChange{
			Key:    p.UnpackBytes(),
			Delete: p.UnpackBool(),
		}
		if !change.Delete {
			change.Value = p.UnpackBytes()
		}
		changes = append(changes, change)
	}
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, errTrailingBytes
	}
	return changes, nil
}
