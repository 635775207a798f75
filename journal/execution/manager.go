// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ava-labs/journal/cache"
	"github.com/ava-labs/journal/cache/lru"
	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/prefixdb"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/utils/logging"
)

const (
	// DefaultUndoDepth is the number of committed roots that can be rolled
	// back to or read from.
	DefaultUndoDepth = 1024

	undoCacheSize     = 256
	maxUndoRecordSize = math.MaxInt32
)

var (
	statePrefix = []byte("state")
	undoPrefix  = []byte("undo")
	indexPrefix = []byte("index")
	metaPrefix  = []byte("meta")

	rootKey = []byte("root")
	seqKey  = []byte("seq")

	ErrUnknownContext   = errors.New("unknown execution context")
	ErrContextSealed    = errors.New("execution context is sealed")
	ErrContextNotSealed = errors.New("execution context is not sealed")
	ErrUnknownRoot      = errors.New("state root is not available")
	ErrBrokenChain      = errors.New("contexts do not form a chain")
	ErrStaleSquash      = errors.New("committed root changed since squash")

	errDuplicateHandler = errors.New("duplicate handler for family")
	errNoHandler        = errors.New("no handler for family")
)

// Manager owns the committed state and an arena of speculative execution
// contexts on top of it.
//
// Committed state is stored as the current key/value set plus one undo record
// per committed root, which makes it possible to read any retained root and
// to roll back to it.
type Manager struct {
	log       logging.Logger
	metrics   *metrics
	handlers  map[string]Handler
	undoDepth uint64

	db database.Database

	// lock guards the committed state and the arena.
	lock  sync.RWMutex
	state database.Database
	undo  database.Database
	// index maps commit sequence numbers to roots for pruning.
	index         database.Database
	committedRoot ids.ID
	seq           uint64
	undoCache     cache.Cacher[ids.ID, *undoRecord]

	nextID   ContextID
	contexts map[ContextID]*executionContext
}

func NewManager(
	db database.Database,
	log logging.Logger,
	reg prometheus.Registerer,
	undoDepth uint64,
	handlers ...Handler,
) (*Manager, error) {
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		log:       log,
		metrics:   metrics,
		handlers:  make(map[string]Handler, len(handlers)),
		undoDepth: max(undoDepth, 1),
		db:        db,
		state:     prefixdb.NewNested(statePrefix, db),
		undo:      prefixdb.NewNested(undoPrefix, db),
		index:     prefixdb.NewNested(indexPrefix, db),
		undoCache: lru.NewCache[ids.ID, *undoRecord](undoCacheSize),
		contexts:  make(map[ContextID]*executionContext),
	}
	for _, h := range handlers {
		family := h.Family()
		if _, ok := m.handlers[family]; ok {
			return nil, fmt.Errorf("%w %q", errDuplicateHandler, family)
		}
		m.handlers[family] = h
	}

	meta := prefixdb.NewNested(metaPrefix, db)
	m.committedRoot, err = database.WithDefault(database.GetID, meta, rootKey, ids.Empty)
	if err != nil {
		return nil, err
	}
	m.seq, err = database.WithDefault(database.GetUInt64, meta, seqKey, 0)
	return m, err
}

// CommittedRoot is the state root of the durable state.
func (m *Manager) CommittedRoot() ids.ID {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.committedRoot
}

// Len returns the number of contexts in the arena.
func (m *Manager) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.contexts)
}

// CreateContext opens a context on top of [baseRoot], which must be either a
// retained committed root or the root of a sealed context.
func (m *Manager) CreateContext(baseRoot ids.ID) (ContextID, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ec := &executionContext{
		baseRoot: baseRoot,
		writes:   make(map[string]*write),
	}
	if baseRoot != m.committedRoot {
		if parent := m.sealedContext(baseRoot); parent != nil {
			ec.parent.Store(parent)
		} else if ok, err := m.isRetained(baseRoot); err != nil {
			return 0, err
		} else if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownRoot, baseRoot)
		}
	}

	m.nextID++
	ec.id = m.nextID
	m.contexts[ec.id] = ec
	m.metrics.contexts.Set(float64(len(m.contexts)))
	return ec.id, nil
}

func (m *Manager) sealedContext(root ids.ID) *executionContext {
	for _, ec := range m.contexts {
		if ec.sealed && ec.root == root {
			return ec
		}
	}
	return nil
}

// Execute applies [batch] to the context.
//
// A failed transaction is reported in the returned result and discards the
// writes of the whole batch. A returned error means the context could not be
// executed at all.
func (m *Manager) Execute(ctx context.Context, id ContextID, batch *block.Batch) (*BatchResult, error) {
	m.lock.RLock()
	ec, ok := m.contexts[id]
	sealed := ok && ec.sealed
	m.lock.RUnlock()
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
	case sealed:
		return nil, fmt.Errorf("%w: %d", ErrContextSealed, id)
	}

	var (
		txCtx  = newTxContext(m, ec)
		result = &BatchResult{
			BatchID:  batch.ID(),
			Valid:    true,
			Receipts: make([]*Receipt, 0, len(batch.Transactions)),
		}
	)
	for _, tx := range batch.Transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var applyErr error
		if handler, ok := m.handlers[tx.Family]; ok {
			applyErr = handler.Apply(ctx, txCtx, tx)
		} else {
			applyErr = fmt.Errorf("%w %q", errNoHandler, tx.Family)
		}
		if txCtx.fault != nil {
			return nil, fmt.Errorf("couldn't execute tx %s: %w", tx.ID(), txCtx.fault)
		}

		receipt := &Receipt{TxID: tx.ID()}
		receipt.Events, receipt.Data = txCtx.takeOutput()
		if applyErr != nil {
			receipt.Error = applyErr.Error()
			receipt.Events = nil
			result.Valid = false
			result.Receipts = append(result.Receipts, receipt)
			break
		}
		receipt.Success = true
		result.Receipts = append(result.Receipts, receipt)
	}

	m.metrics.batchesExecuted.Inc()
	if !result.Valid {
		m.metrics.batchesFailed.Inc()
		m.log.Debug("batch failed",
			zap.Stringer("batchID", result.BatchID),
			zap.String("reason", result.Receipts[len(result.Receipts)-1].Error),
		)
		return result, nil
	}
	maps.Copy(ec.writes, txCtx.writes)
	return result, nil
}

// Seal freezes the context and returns the state root it reached along with
// its writes sorted by key.
func (m *Manager) Seal(id ContextID) (ids.ID, []StateChange, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ec, ok := m.contexts[id]
	switch {
	case !ok:
		return ids.Empty, nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
	case ec.sealed:
		return ids.Empty, nil, fmt.Errorf("%w: %d", ErrContextSealed, id)
	}
	ec.changes = sortedChanges(ec.writes)
	ec.root = ComputeRoot(ec.baseRoot, ec.changes)
	ec.sealed = true
	return ec.root, ec.changes, nil
}

// Discard drops the context from the arena. Contexts created on top of it
// stay readable.
func (m *Manager) Discard(id ContextID) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.contexts, id)
	m.metrics.contexts.Set(float64(len(m.contexts)))
}

// Reader returns a reader of the state the context currently holds. Reads
// of an unexecuted context return the state at its base root.
func (m *Manager) Reader(id ContextID) (Reader, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	ec, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
	}
	return &contextReader{
		manager: m,
		ctx:     ec,
	}, nil
}

type contextReader struct {
	manager *Manager
	ctx     *executionContext
}

func (r *contextReader) Get(key []byte) ([]byte, error) {
	return r.ctx.get(r.manager, key)
}

// View returns a reader of the committed state at [root].
func (m *Manager) View(root ids.ID) (Reader, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	ok, err := m.isRetained(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	return &view{
		manager: m,
		root:    root,
	}, nil
}

type view struct {
	manager *Manager
	root    ids.ID
}

func (v *view) Get(key []byte) ([]byte, error) {
	return v.manager.readCommitted(v.root, key)
}

// readCommitted returns the value of [key] at the committed root [root] by
// undoing every commit made after it.
func (m *Manager) readCommitted(root ids.ID, key []byte) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var (
		found bool
		value prior
	)
	for cur := m.committedRoot; cur != root; {
		rec, err := m.getUndo(cur)
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
		}
		if err != nil {
			return nil, err
		}
		// The record closest to [root] holds the value at [root].
		if pr, ok := rec.priors[string(key)]; ok {
			found, value = true, pr
		}
		cur = rec.parent
	}
	if !found {
		return m.state.Get(key)
	}
	if !value.exists {
		return nil, database.ErrNotFound
	}
	return slices.Clone(value.value), nil
}

// isRetained reports whether the committed state at [root] can still be read.
func (m *Manager) isRetained(root ids.ID) (bool, error) {
	if root == m.committedRoot {
		return true, nil
	}
	_, err := m.getUndo(root)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}
	if m.seq == 0 {
		return false, nil
	}

	// The root the oldest retained commit was applied to is reachable too.
	oldest := uint64(1)
	if m.seq > m.undoDepth {
		oldest = m.seq - m.undoDepth + 1
	}
	rootBytes, err := m.index.Get(database.PackUInt64(oldest))
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	oldestRoot, err := ids.ToID(rootBytes)
	if err != nil {
		return false, err
	}
	rec, err := m.getUndo(oldestRoot)
	if err != nil {
		return false, err
	}
	return rec.parent == root, nil
}

func (m *Manager) getUndo(root ids.ID) (*undoRecord, error) {
	if rec, ok := m.undoCache.Get(root); ok {
		return rec, nil
	}
	bytes, err := m.undo.Get(root[:])
	if err != nil {
		return nil, err
	}
	rec, err := parseUndoRecord(bytes)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse undo record %s: %w", root, err)
	}
	m.undoCache.Put(root, rec)
	return rec, nil
}
