// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"errors"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/utils/wrappers"
)

var errUndoTrailingBytes = errors.New("trailing bytes after undo record")

// prior is the value a key had before a commit changed it.
type prior struct {
	value  []byte
	exists bool
}

// undoRecord allows the commit that produced a root to be reverted. It is
// stored under that root.
type undoRecord struct {
	parent ids.ID
	seq    uint64
	priors map[string]prior
}

func (u *undoRecord) Bytes() ([]byte, error) {
	p := wrappers.Packer{
		MaxSize: maxUndoRecordSize,
		Bytes:   make([]byte, 0, ids.IDLen+wrappers.LongLen+wrappers.IntLen),
	}
	p.PackFixedBytes(u.parent[:])
	p.PackLong(u.seq)
	p.PackInt(uint32(len(u.priors)))
	for key, pr := range u.priors {
		p.PackBytes([]byte(key))
		p.PackBool(pr.exists)
		p.PackBytes(pr.value)
	}
	return p.Bytes, p.Err
}

func parseUndoRecord(b []byte) (*undoRecord, error) {
	p := wrappers.Packer{Bytes: b}
	u := &undoRecord{}
	copy(u.parent[:], p.UnpackFixedBytes(ids.IDLen))
	u.seq = p.UnpackLong()
	count := p.UnpackInt()
	if p.Errored() {
		return nil, p.Err
	}
	u.priors = make(map[string]prior, min(int(count), len(b)))
	for i := uint32(0); i < count && !p.Errored(); i++ {
		key := string(p.UnpackBytes())
		exists := p.UnpackBool()
		value := p.UnpackBytes()
		u.priors[key] = prior{
			value:  value,
			exists: exists,
		}
	}
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, errUndoTrailingBytes
	}
	return u, nil
}
