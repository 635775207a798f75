// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/memdb"
	"github.com/ava-labs/journal/database/prefixdb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/execution/kv"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

var nonce uint64

func newManager(t *testing.T, db database.Database, undoDepth uint64) *execution.Manager {
	m, err := execution.NewManager(db, logging.NoLog{}, prometheus.NewRegistry(), undoDepth, &kv.Handler{})
	require.NoError(t, err)
	return m
}

func putBatch(t *testing.T, kvs ...string) *block.Batch {
	require := require.New(t)
	key := secp256k1.TestKeys()[0]

	txs := make([]*block.Transaction, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		nonce++
		tx, err := kv.NewPut(key, nonce, []byte(kvs[i]), []byte(kvs[i+1]))
		require.NoError(err)
		txs = append(txs, tx)
	}
	batch, err := block.NewBatch(key, txs)
	require.NoError(err)
	return batch
}

// execute runs [batches] in a new context on [baseRoot] and seals it.
func execute(t *testing.T, m *execution.Manager, baseRoot ids.ID, batches ...*block.Batch) (execution.ContextID, ids.ID) {
	require := require.New(t)

	id, err := m.CreateContext(baseRoot)
	require.NoError(err)
	for _, batch := range batches {
		result, err := m.Execute(context.Background(), id, batch)
		require.NoError(err)
		require.True(result.Valid)
	}
	root, _, err := m.Seal(id)
	require.NoError(err)
	return id, root
}

func commit(t *testing.T, m *execution.Manager, forkRoot ids.ID, contexts ...execution.ContextID) {
	require := require.New(t)

	sq, err := m.Squash(forkRoot, contexts)
	require.NoError(err)
	require.NoError(m.Commit(sq))
	require.Equal(sq.Root(), m.CommittedRoot())
}

func requireValue(t *testing.T, m *execution.Manager, root ids.ID, key string, expected string) {
	require := require.New(t)

	view, err := m.View(root)
	require.NoError(err)
	value, err := view.Get([]byte(key))
	if expected == "" {
		require.ErrorIs(err, database.ErrNotFound)
		return
	}
	require.NoError(err)
	require.Equal(expected, string(value))
}

func TestExecuteAndSeal(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	id, err := m.CreateContext(ids.Empty)
	require.NoError(err)

	batch := putBatch(t, "a", "1", "b", "2")
	result, err := m.Execute(context.Background(), id, batch)
	require.NoError(err)
	require.True(result.Valid)
	require.Equal(batch.ID(), result.BatchID)
	require.Len(result.Receipts, 2)
	for _, receipt := range result.Receipts {
		require.True(receipt.Success)
		require.Len(receipt.Events, 1)
	}

	root, changes, err := m.Seal(id)
	require.NoError(err)
	require.Len(changes, 2)
	require.Equal("a", string(changes[0].Key))
	require.Equal("b", string(changes[1].Key))
	require.Equal(execution.ComputeRoot(ids.Empty, changes), root)

	_, err = m.Execute(context.Background(), id, batch)
	require.ErrorIs(err, execution.ErrContextSealed)
	_, _, err = m.Seal(id)
	require.ErrorIs(err, execution.ErrContextSealed)

	m.Discard(id)
	_, err = m.Execute(context.Background(), id, batch)
	require.ErrorIs(err, execution.ErrUnknownContext)
}

func TestRootIsDeterministic(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	b1 := putBatch(t, "a", "1")
	b2 := putBatch(t, "b", "2")
	_, root1 := execute(t, m, ids.Empty, b1, b2)
	_, root2 := execute(t, m, ids.Empty, b1, b2)
	require.Equal(root1, root2)

	_, root3 := execute(t, m, ids.Empty, b1)
	require.NotEqual(root1, root3)
}

func TestFailedBatchDiscardsWrites(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)
	key := secp256k1.TestKeys()[0]

	put, err := kv.NewPut(key, 100, []byte("a"), []byte("1"))
	require.NoError(err)
	cas, err := kv.NewCompareAndSet(key, 101, []byte("b"), []byte("missing"), []byte("2"))
	require.NoError(err)
	batch, err := block.NewBatch(key, []*block.Transaction{put, cas})
	require.NoError(err)

	id, err := m.CreateContext(ids.Empty)
	require.NoError(err)
	result, err := m.Execute(context.Background(), id, batch)
	require.NoError(err)
	require.False(result.Valid)
	require.Len(result.Receipts, 2)
	require.True(result.Receipts[0].Success)
	require.False(result.Receipts[1].Success)
	require.Contains(result.Receipts[1].Error, kv.ErrCompareMismatch.Error())

	_, changes, err := m.Seal(id)
	require.NoError(err)
	require.Empty(changes)
}

func TestUnknownFamilyFailsBatch(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)
	key := secp256k1.TestKeys()[0]

	tx, err := block.NewTransaction(key, "unknown", 0, nil, nil)
	require.NoError(err)
	batch, err := block.NewBatch(key, []*block.Transaction{tx})
	require.NoError(err)

	id, err := m.CreateContext(ids.Empty)
	require.NoError(err)
	result, err := m.Execute(context.Background(), id, batch)
	require.NoError(err)
	require.False(result.Valid)
}

func TestChildContextReadsParent(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)
	key := secp256k1.TestKeys()[0]

	_, parentRoot := execute(t, m, ids.Empty, putBatch(t, "a", "1"))

	cas, err := kv.NewCompareAndSet(key, 200, []byte("a"), []byte("1"), []byte("2"))
	require.NoError(err)
	batch, err := block.NewBatch(key, []*block.Transaction{cas})
	require.NoError(err)

	childID, childRoot := execute(t, m, parentRoot, batch)
	require.NotEqual(parentRoot, childRoot)

	_, err = m.Squash(ids.Empty, []execution.ContextID{childID})
	require.ErrorIs(err, execution.ErrBrokenChain)

	_, err = m.CreateContext(ids.GenerateTestID())
	require.ErrorIs(err, execution.ErrUnknownRoot)
}

func TestSquashCommit(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	id1, root1 := execute(t, m, ids.Empty, putBatch(t, "a", "1"))
	id2, root2 := execute(t, m, root1, putBatch(t, "b", "2"))
	// A context on top of an uncommitted context survives its parent's
	// commit.
	id3, err := m.CreateContext(root2)
	require.NoError(err)

	_, err = m.Squash(ids.Empty, []execution.ContextID{id2})
	require.ErrorIs(err, execution.ErrBrokenChain)

	unsealed, err := m.CreateContext(root2)
	require.NoError(err)
	_, err = m.Squash(root2, []execution.ContextID{unsealed})
	require.ErrorIs(err, execution.ErrContextNotSealed)
	m.Discard(unsealed)

	commit(t, m, ids.Empty, id1, id2)
	require.Equal(root2, m.CommittedRoot())
	require.Equal(1, m.Len())

	requireValue(t, m, root2, "a", "1")
	requireValue(t, m, root2, "b", "2")
	requireValue(t, m, root1, "a", "1")
	requireValue(t, m, root1, "b", "")
	requireValue(t, m, ids.Empty, "a", "")

	key := secp256k1.TestKeys()[0]
	cas, err := kv.NewCompareAndSet(key, 300, []byte("b"), []byte("2"), []byte("3"))
	require.NoError(err)
	batch, err := block.NewBatch(key, []*block.Transaction{cas})
	require.NoError(err)
	result, err := m.Execute(context.Background(), id3, batch)
	require.NoError(err)
	require.True(result.Valid)
}

func TestSquashRollback(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	idA, rootA := execute(t, m, ids.Empty, putBatch(t, "a", "1", "shared", "A"))
	commit(t, m, ids.Empty, idA)
	idB, rootB := execute(t, m, rootA, putBatch(t, "b", "2", "shared", "B"))
	commit(t, m, rootA, idB)
	requireValue(t, m, rootB, "shared", "B")

	// Fork from A: C replaces B.
	idC, rootC := execute(t, m, rootA, putBatch(t, "c", "3"))
	sq, err := m.Squash(rootA, []execution.ContextID{idC})
	require.NoError(err)
	require.Equal(1, sq.Reverted())
	require.NoError(m.Commit(sq))
	require.Equal(rootC, m.CommittedRoot())

	requireValue(t, m, rootC, "a", "1")
	requireValue(t, m, rootC, "b", "")
	requireValue(t, m, rootC, "c", "3")
	requireValue(t, m, rootC, "shared", "A")
	requireValue(t, m, rootA, "c", "")

	_, err = m.View(rootB)
	require.ErrorIs(err, execution.ErrUnknownRoot)
}

func TestReadFromRolledBackRootIsFault(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)
	key := secp256k1.TestKeys()[0]

	idA, rootA := execute(t, m, ids.Empty, putBatch(t, "a", "1"))
	commit(t, m, ids.Empty, idA)

	stale, err := m.CreateContext(rootA)
	require.NoError(err)

	idB, _ := execute(t, m, ids.Empty, putBatch(t, "b", "2"))
	commit(t, m, ids.Empty, idB)

	cas, err := kv.NewCompareAndSet(key, 400, []byte("a"), []byte("1"), []byte("2"))
	require.NoError(err)
	batch, err := block.NewBatch(key, []*block.Transaction{cas})
	require.NoError(err)
	_, err = m.Execute(context.Background(), stale, batch)
	require.ErrorIs(err, execution.ErrUnknownRoot)
}

func TestCommitWithExtras(t *testing.T) {
	require := require.New(t)
	base := memdb.New()
	stateDB := prefixdb.New([]byte("state"), base)
	otherDB := prefixdb.New([]byte("other"), base)
	m := newManager(t, stateDB, execution.DefaultUndoDepth)

	id, root := execute(t, m, ids.Empty, putBatch(t, "a", "1"))
	sq, err := m.Squash(ids.Empty, []execution.ContextID{id})
	require.NoError(err)

	extra := otherDB.NewBatch()
	require.NoError(extra.Put([]byte("head"), root[:]))
	require.NoError(m.Commit(sq, extra))

	head, err := otherDB.Get([]byte("head"))
	require.NoError(err)
	require.Equal(root[:], head)

	reopened := newManager(t, stateDB, execution.DefaultUndoDepth)
	require.Equal(root, reopened.CommittedRoot())
	requireValue(t, reopened, root, "a", "1")
}

func TestStaleSquash(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	id1, _ := execute(t, m, ids.Empty, putBatch(t, "a", "1"))
	id2, _ := execute(t, m, ids.Empty, putBatch(t, "a", "2"))

	sq1, err := m.Squash(ids.Empty, []execution.ContextID{id1})
	require.NoError(err)
	sq2, err := m.Squash(ids.Empty, []execution.ContextID{id2})
	require.NoError(err)

	require.NoError(m.Commit(sq1))
	require.ErrorIs(m.Commit(sq2), execution.ErrStaleSquash)
}

func TestUndoPruning(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), 2)

	root := ids.Empty
	roots := []ids.ID{root}
	for i := 0; i < 4; i++ {
		id, next := execute(t, m, root, putBatch(t, "k", string(rune('a'+i))))
		commit(t, m, root, id)
		root = next
		roots = append(roots, root)
	}

	requireValue(t, m, roots[4], "k", "d")
	requireValue(t, m, roots[3], "k", "c")
	requireValue(t, m, roots[2], "k", "b")
	_, err := m.View(roots[1])
	require.ErrorIs(err, execution.ErrUnknownRoot)
	_, err = m.CreateContext(roots[1])
	require.ErrorIs(err, execution.ErrUnknownRoot)
	_, err = m.Squash(roots[1], nil)
	require.ErrorIs(err, execution.ErrUnknownRoot)
}

func TestContextReader(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	parentID, parentRoot := execute(t, m, ids.Empty, putBatch(t, "a", "1"))
	childID, err := m.CreateContext(parentRoot)
	require.NoError(err)

	reader, err := m.Reader(childID)
	require.NoError(err)
	value, err := reader.Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte("1"), value)

	_, err = m.Execute(context.Background(), childID, putBatch(t, "a", "2"))
	require.NoError(err)
	value, err = reader.Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte("2"), value)

	m.Discard(childID)
	m.Discard(parentID)
	_, err = m.Reader(childID)
	require.ErrorIs(err, execution.ErrUnknownContext)
}

func TestUnknownRootBeforeFirstCommit(t *testing.T) {
	require := require.New(t)
	m := newManager(t, memdb.New(), execution.DefaultUndoDepth)

	unknown := ids.GenerateTestID()
	_, err := m.CreateContext(unknown)
	require.ErrorIs(err, execution.ErrUnknownRoot)

	_, err = m.View(unknown)
	require.ErrorIs(err, execution.ErrUnknownRoot)

	_, err = m.View(ids.Empty)
	require.NoError(err)
}
