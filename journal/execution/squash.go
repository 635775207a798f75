// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/prefixdb"
	"github.com/ava-labs/journal/database/versiondb"
	"github.com/ava-labs/journal/ids"
)

// Squash is a computed but unwritten change to the committed state: the
// commits after a fork root are reverted and a chain of sealed contexts is
// applied on top of it.
type Squash struct {
	fromRoot ids.ID
	fromSeq  uint64

	root     ids.ID
	seq      uint64
	contexts []*executionContext
	// dropped are the roots whose undo records are deleted by this squash.
	dropped  []ids.ID
	reverted int

	db *versiondb.Database
}

// Root is the committed root after the squash is committed.
func (s *Squash) Root() ids.ID {
	return s.root
}

// Reverted is the number of committed roots the squash rolls back.
func (s *Squash) Reverted() int {
	return s.reverted
}

// Squash computes the state that results from rolling the committed state back
// to [forkRoot] and then applying the contexts [ids] in order.
//
// The first context must be based on [forkRoot] and each following context
// on the root of the previous one. Nothing is written until Commit.
func (m *Manager) Squash(forkRoot ids.ID, contextIDs []ContextID) (*Squash, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	contexts := make([]*executionContext, len(contextIDs))
	expectedBase := forkRoot
	for i, id := range contextIDs {
		ec, ok := m.contexts[id]
		switch {
		case !ok:
			return nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
		case !ec.sealed:
			return nil, fmt.Errorf("%w: %d", ErrContextNotSealed, id)
		case ec.baseRoot != expectedBase:
			return nil, fmt.Errorf("%w: context %d is based on %s, expected %s",
				ErrBrokenChain,
				id,
				ec.baseRoot,
				expectedBase,
			)
		}
		contexts[i] = ec
		expectedBase = ec.root
	}

	var (
		// The views over [vdb] must produce the same keys as the manager's
		// views over [m.db], so prefixes are never compressed.
		vdb   = versiondb.New(m.db)
		state = prefixdb.NewNested(statePrefix, vdb)
		undo  = prefixdb.NewNested(undoPrefix, vdb)
		index = prefixdb.NewNested(indexPrefix, vdb)
		meta  = prefixdb.NewNested(metaPrefix, vdb)
		sq    = &Squash{
			fromRoot: m.committedRoot,
			fromSeq:  m.seq,
			contexts: contexts,
			db:       vdb,
		}
		cur = m.committedRoot
		seq = m.seq
	)
	for cur != forkRoot {
		rec, err := m.getUndo(cur)
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: fork root %s", ErrUnknownRoot, forkRoot)
		}
		if err != nil {
			return nil, err
		}
		for key, pr := range rec.priors {
			if pr.exists {
				err = state.Put([]byte(key), pr.value)
			} else {
				err = state.Delete([]byte(key))
			}
			if err != nil {
				return nil, err
			}
		}
		if err := undo.Delete(cur[:]); err != nil {
			return nil, err
		}
		if err := index.Delete(database.PackUInt64(seq)); err != nil {
			return nil, err
		}
		sq.dropped = append(sq.dropped, cur)
		sq.reverted++
		cur, seq = rec.parent, seq-1
	}

	for _, ec := range contexts {
		seq++
		rec := &undoRecord{
			parent: cur,
			seq:    seq,
			priors: make(map[string]prior, len(ec.changes)),
		}
		for _, change := range ec.changes {
			old, err := state.Get(change.Key)
			switch {
			case err == nil:
				rec.priors[string(change.Key)] = prior{
					value:  old,
					exists: true,
				}
			case errors.Is(err, database.ErrNotFound):
				rec.priors[string(change.Key)] = prior{}
			default:
				return nil, err
			}

			if change.Delete {
				err = state.Delete(change.Key)
			} else {
				err = state.Put(change.Key, change.Value)
			}
			if err != nil {
				return nil, err
			}
		}
		recBytes, err := rec.Bytes()
		if err != nil {
			return nil, err
		}
		if err := undo.Put(ec.root[:], recBytes); err != nil {
			return nil, err
		}
		if err := index.Put(database.PackUInt64(seq), ec.root[:]); err != nil {
			return nil, err
		}
		if err := m.prune(sq, undo, index, seq); err != nil {
			return nil, err
		}
		cur = ec.root
	}

	if err := database.PutID(meta, rootKey, cur); err != nil {
		return nil, err
	}
	if err := database.PutUInt64(meta, seqKey, seq); err != nil {
		return nil, err
	}
	sq.root = cur
	sq.seq = seq
	return sq, nil
}

// prune drops the undo record that falls out of the retained window once
// [seq] is committed.
func (m *Manager) prune(sq *Squash, undo, index database.KeyValueReaderWriterDeleter, seq uint64) error {
	if seq <= m.undoDepth {
		return nil
	}
	key := database.PackUInt64(seq - m.undoDepth)
	rootBytes, err := index.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	root, err := ids.ToID(rootBytes)
	if err != nil {
		return err
	}
	if err := undo.Delete(root[:]); err != nil {
		return err
	}
	sq.dropped = append(sq.dropped, root)
	return index.Delete(key)
}

// Commit atomically writes [sq] together with [extras]. Every extra batch must
// write to the same underlying database as the manager.
func (m *Manager) Commit(sq *Squash, extras ...database.Batch) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if sq.fromRoot != m.committedRoot || sq.fromSeq != m.seq {
		return fmt.Errorf("%w: squash from %s, committed %s", ErrStaleSquash, sq.fromRoot, m.committedRoot)
	}

	batch, err := sq.db.CommitBatch()
	if err != nil {
		return err
	}
	inner := batch.Inner()
	for _, extra := range extras {
		if err := extra.Inner().Replay(inner); err != nil {
			return err
		}
	}
	if err := inner.Write(); err != nil {
		return err
	}

	m.committedRoot = sq.root
	m.seq = sq.seq
	for _, root := range sq.dropped {
		m.undoCache.Evict(root)
	}
	for _, ec := range sq.contexts {
		ec.committed.Store(true)
		ec.parent.Store(nil)
		delete(m.contexts, ec.id)
	}
	m.metrics.contexts.Set(float64(len(m.contexts)))
	m.metrics.commits.Add(float64(len(sq.contexts)))
	m.metrics.rolledBack.Add(float64(sq.reverted))

	m.log.Debug("committed state",
		zap.Stringer("root", sq.root),
		zap.Uint64("seq", sq.seq),
		zap.Int("reverted", sq.reverted),
		zap.Int("applied", len(sq.contexts)),
	)
	return nil
}
