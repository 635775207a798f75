// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/blockcache"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/journaltest"
	"github.com/ava-labs/journal/journal/validator"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/logging"
)

var errTest = errors.New("non-nil error")

// syncValidator queues submitted blocks until the test drains them.
type syncValidator struct {
	*validator.Validator

	queue []*block.Block
}

func (v *syncValidator) Submit(blk *block.Block) bool {
	v.queue = append(v.queue, blk)
	return true
}

// namedObserver appends its name to [calls] and returns [err].
type namedObserver struct {
	name  string
	calls *[]string
	err   error
}

func (o *namedObserver) OnChainUpdated(context.Context, *ChainUpdate) error {
	*o.calls = append(*o.calls, o.name)
	return o.err
}

type recordingObserver struct {
	updates []*ChainUpdate
}

func (o *recordingObserver) OnChainUpdated(_ context.Context, update *ChainUpdate) error {
	o.updates = append(o.updates, update)
	return nil
}

// hidingCache fails lookups of the hidden blocks.
type hidingCache struct {
	*blockcache.Cache

	hidden map[ids.ID]bool
}

func (c *hidingCache) Get(blkID ids.ID) (*block.Block, error) {
	if c.hidden[blkID] {
		return nil, database.ErrNotFound
	}
	return c.Cache.Get(blkID)
}

type testChain struct {
	*Controller

	env       *journaltest.Env
	cache     *hidingCache
	validator *syncValidator
	observer  *recordingObserver
}

func newTestChain(t testing.TB, env *journaltest.Env) *testChain {
	return newTestChainWithObservers(t, env)
}

// newTestChainWithObservers registers [observers] ahead of the recording
// observer of the returned chain.
func newTestChainWithObservers(t testing.TB, env *journaltest.Env, observers ...Observer) *testChain {
	require := require.New(t)

	v, err := validator.New(
		validator.Config{},
		env.Cache,
		env.Store,
		env.Manager,
		env.Engine,
		trace.Noop,
		logging.NoLog{},
		prometheus.NewRegistry(),
	)
	require.NoError(err)

	tc := &testChain{
		env: env,
		cache: &hidingCache{
			Cache:  env.Cache,
			hidden: make(map[ids.ID]bool),
		},
		validator: &syncValidator{Validator: v},
		observer:  &recordingObserver{},
	}
	tc.Controller, err = New(
		tc.cache,
		env.Store,
		tc.validator,
		env.Manager,
		env.Engine,
		logging.NoLog{},
		prometheus.NewRegistry(),
		append(observers, tc.observer)...,
	)
	require.NoError(err)
	require.NoError(tc.Initialize())
	env.Cache.RegisterInUse(tc.InUse)
	env.Cache.SetOnEvict(tc.OnEvict)
	return tc
}

// deliver caches and queues every block in order, validating submitted blocks
// after each one.
func (c *testChain) deliver(t testing.TB, blks ...*block.Block) {
	for _, blk := range blks {
		c.env.Cache.Put(blk)
		require.NoError(t, c.QueueBlock(blk))
		c.drain(t)
	}
}

func (c *testChain) drain(t testing.TB) {
	ctx := context.Background()
	for len(c.validator.queue) > 0 {
		blk := c.validator.queue[0]
		c.validator.queue = c.validator.queue[1:]
		result := c.validator.Validate(ctx, blk)
		require.NoError(t, c.OnBlockValidated(ctx, result))
	}
}

func (c *testChain) status(blkID ids.ID) (status, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	st, ok := c.states[blkID]
	if !ok {
		return 0, false
	}
	return st.status, true
}

func (c *testChain) requireHead(t testing.TB, head *block.Block) {
	require := require.New(t)

	require.Equal(head.ID(), c.ChainHead().ID())
	storeHead, err := c.env.Store.ChainHead()
	require.NoError(err)
	require.Equal(head.ID(), storeHead.ID())
	require.Equal(head.StateRoot, c.env.Manager.CommittedRoot())
}

// requireCanonical checks the committed chain below [head] height by height.
func (c *testChain) requireCanonical(t testing.TB, chain ...*block.Block) {
	for _, blk := range chain {
		got, err := c.env.Store.GetByHeight(blk.Height)
		require.NoError(t, err)
		require.Equal(t, blk.ID(), got.ID())
	}
}

// buildLosing builds a block on [parent] whose ID is greater than the ID of
// [rival], so it loses a tie break against it.
func buildLosing(t testing.TB, env *journaltest.Env, parent, rival *block.Block, value string) *block.Block {
	for {
		blk := env.Build(t, parent, journaltest.PutBatch(t, env.Key, "k", value))
		if blk.ID().Compare(rival.ID()) > 0 {
			return blk
		}
	}
}

func TestExtendChain(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)
	updates := c.Subscribe()

	chain := env.Chain(t, env.Genesis, 3)
	c.deliver(t, chain...)

	c.requireHead(t, chain[2])
	c.requireCanonical(t, chain...)
	require.Len(c.observer.updates, 3)
	for i, update := range c.observer.updates {
		require.False(update.Reorg())
		require.Len(update.Committed, 1)
		require.Equal(chain[i], update.Committed[0].Block)
		require.Len(update.Committed[0].Receipts(), 1)
		require.Equal(update, <-updates)
	}
	require.Zero(env.Manager.Len())
	require.Empty(c.states)
	require.Zero(env.Cache.Len())
}

func TestObserversAreCalledInOrder(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)

	var calls []string
	c := newTestChainWithObservers(t, env,
		&namedObserver{name: "deltas", calls: &calls},
		&namedObserver{name: "events", calls: &calls},
		&namedObserver{name: "receipts", calls: &calls},
	)

	chain := env.Chain(t, env.Genesis, 2)
	c.deliver(t, chain...)
	require.Equal([]string{"deltas", "events", "receipts", "deltas", "events", "receipts"}, calls)
	require.Len(c.observer.updates, 2)
}

func TestObserverFailureKeepsCommit(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)

	var calls []string
	c := newTestChainWithObservers(t, env,
		&namedObserver{name: "failing", calls: &calls, err: errTest},
		&namedObserver{name: "next", calls: &calls},
	)
	updates := c.Subscribe()

	blk := env.Build(t, env.Genesis, journaltest.PutBatch(t, env.Key, "k", "v"))
	env.Cache.Put(blk)
	require.NoError(c.QueueBlock(blk))
	c.drain(t)

	c.requireHead(t, blk)
	require.Equal([]string{"failing", "next"}, calls)
	require.Len(c.observer.updates, 1)
	require.Equal(blk, (<-updates).Head)
}

func TestCachedParentsAreQueuedFirst(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	chain := env.Chain(t, env.Genesis, 3)
	for _, blk := range chain {
		env.Cache.Put(blk)
	}
	require.NoError(c.QueueBlock(chain[2]))
	require.Len(c.validator.queue, 1)
	require.Equal(chain[0], c.validator.queue[0])
	require.True(c.InUse(chain[0].ID()))
	require.True(c.InUse(chain[1].ID()))

	c.drain(t)
	c.requireHead(t, chain[2])
	require.Len(c.observer.updates, 3)
}

func TestReorgScenario(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	main := env.Chain(t, env.Genesis, 10)
	c.deliver(t, main...)
	c.requireHead(t, main[9])
	require.Len(c.observer.updates, 10)

	// #10' must lose the tie against #10 so the head only changes at #11'.
	fork9 := env.Build(t, main[7], journaltest.PutBatch(t, env.Key, "fork", "9"))
	fork10 := buildLosing(t, env, fork9, main[9], "fork10")
	fork11 := env.Build(t, fork10, journaltest.PutBatch(t, env.Key, "fork", "11"))

	c.deliver(t, fork9, fork10)
	c.requireHead(t, main[9])
	require.Len(c.observer.updates, 10)

	c.deliver(t, fork11)
	c.requireHead(t, fork11)
	c.requireCanonical(t, append(main[:8:8], fork9, fork10, fork11)...)
	require.Len(c.observer.updates, 11)

	update := c.observer.updates[10]
	require.True(update.Reorg())
	require.Equal(fork11, update.Head)
	require.Equal([]*block.Block{main[9], main[8]}, update.Uncommitted)
	require.Len(update.Committed, 3)
	for i, blk := range []*block.Block{fork9, fork10, fork11} {
		require.Equal(blk, update.Committed[i].Block)
	}

	// Rolled back blocks are cached again but no longer tracked.
	for _, blk := range main[8:] {
		_, ok := env.Cache.GetCached(blk.ID())
		require.True(ok)
		_, tracked := c.status(blk.ID())
		require.False(tracked)
	}
	require.Zero(env.Manager.Len())

	// Extending the old chain past the fork switches back to it.
	main11 := buildLosing(t, env, main[9], fork11, "main11")
	main12 := env.Build(t, main11, journaltest.PutBatch(t, env.Key, "main", "12"))
	c.deliver(t, main11, main12)
	c.requireHead(t, main12)
	c.requireCanonical(t, append(main, main11, main12)...)

	last := c.observer.updates[len(c.observer.updates)-1]
	require.Equal([]*block.Block{fork11, fork10, fork9}, last.Uncommitted)
	require.Len(last.Committed, 4)
}

func TestRolledBackDescendantsAreRevalidated(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	main := env.Chain(t, env.Genesis, 3)
	c.deliver(t, main...)

	// [side] is a losing sibling of main[2] built on main[1].
	side := buildLosing(t, env, main[1], main[2], "side")
	c.deliver(t, side)
	c.requireHead(t, main[2])
	sideStatus, ok := c.status(side.ID())
	require.True(ok)
	require.Equal(validUncommitted, sideStatus)

	// A heavier fork from main[0] rolls back main[1], the parent of [side].
	fork1 := env.Build(t, main[0], journaltest.PutBatch(t, env.Key, "fork", "2"))
	fork2 := buildLosing(t, env, fork1, main[2], "fork3")
	fork3 := env.Build(t, fork2, journaltest.PutBatch(t, env.Key, "fork", "4"))
	c.deliver(t, fork1, fork2, fork3)
	c.requireHead(t, fork3)

	for _, blk := range []*block.Block{main[1], side} {
		s, ok := c.status(blk.ID())
		require.True(ok)
		require.Equal(validUncommitted, s)
	}

	// [side] can be extended into the canonical chain.
	side4 := env.Build(t, side, journaltest.PutBatch(t, env.Key, "side", "4"))
	side5 := env.Build(t, side4, journaltest.PutBatch(t, env.Key, "side", "5"))
	c.deliver(t, side4, side5)
	c.requireHead(t, side5)
	c.requireCanonical(t, main[0], main[1], side, side4, side5)

	view, err := env.Manager.View(side5.StateRoot)
	require.NoError(err)
	value, err := view.Get([]byte("side"))
	require.NoError(err)
	require.Equal([]byte("5"), value)
}

func TestEqualWeightTieBreak(t *testing.T) {
	require := require.New(t)

	genesisBatch := journaltest.PutBatch(t, secp256k1.TestKeys()[0], "genesis", "tie")
	env0 := journaltest.NewEnvWithGenesis(t, genesisBatch)
	env1 := journaltest.NewEnvWithGenesis(t, genesisBatch)
	require.Equal(env0.Genesis.ID(), env1.Genesis.ID())

	a := env0.Build(t, env0.Genesis, journaltest.PutBatch(t, env0.Key, "k", "a"))
	b := env0.Build(t, env0.Genesis, journaltest.PutBatch(t, env0.Key, "k", "b"))
	low, high := a, b
	if b.ID().Compare(a.ID()) < 0 {
		low, high = b, a
	}

	c0 := newTestChain(t, env0)
	c0.deliver(t, low, high)
	c0.requireHead(t, low)
	require.Len(c0.observer.updates, 1)

	c1 := newTestChain(t, env1)
	c1.deliver(t, high, low)
	c1.requireHead(t, low)
	require.Len(c1.observer.updates, 2)
	require.Equal([]*block.Block{high}, c1.observer.updates[1].Uncommitted)
}

func TestInvalidBlockInvalidatesDescendants(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	bad := env.BuildWithRoot(t, env.Genesis, ids.GenerateTestID())
	child := env.BuildWithRoot(t, bad, ids.GenerateTestID())
	grandchild := env.BuildWithRoot(t, child, ids.GenerateTestID())

	env.Cache.Put(bad)
	env.Cache.Put(child)
	require.NoError(c.QueueBlock(child))
	c.drain(t)

	for _, blk := range []*block.Block{bad, child} {
		s, ok := c.status(blk.ID())
		require.True(ok)
		require.Equal(invalid, s)
	}

	// Children of invalid blocks are invalid without validation.
	env.Cache.Put(grandchild)
	require.NoError(c.QueueBlock(grandchild))
	require.Empty(c.validator.queue)
	s, ok := c.status(grandchild.ID())
	require.True(ok)
	require.Equal(invalid, s)

	c.requireHead(t, env.Genesis)
	require.Empty(c.observer.updates)
}

func TestUnknownParentIsDropped(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	parent := env.Build(t, env.Genesis)
	orphan := env.Build(t, parent)
	c.deliver(t, orphan)

	_, tracked := c.status(orphan.ID())
	require.False(tracked)
	require.Zero(env.Manager.Len())
}

func TestForkPointNotFoundKeepsHead(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	main := env.Chain(t, env.Genesis, 2)
	c.deliver(t, main...)

	fork0 := env.Build(t, env.Genesis, journaltest.PutBatch(t, env.Key, "fork", "1"))
	fork1 := buildLosing(t, env, fork0, main[1], "fork2")
	fork2 := env.Build(t, fork1, journaltest.PutBatch(t, env.Key, "fork", "3"))
	c.deliver(t, fork0, fork1)
	c.cache.hidden[fork0.ID()] = true
	c.deliver(t, fork2)

	c.requireHead(t, main[1])
	require.Len(c.observer.updates, 2)
	s, ok := c.status(fork2.ID())
	require.True(ok)
	require.Equal(validUncommitted, s)
}

func TestEvictionProtection(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	main := env.Chain(t, env.Genesis, 2)
	c.deliver(t, main...)

	// [loser] is valid but lighter than the head.
	loser := env.Build(t, env.Genesis, journaltest.PutBatch(t, env.Key, "loser", "1"))
	c.deliver(t, loser)
	require.Equal(1, env.Manager.Len())

	// [pending] waits for validation.
	pending := env.Build(t, main[1])
	env.Cache.Put(pending)
	require.NoError(c.QueueBlock(pending))

	env.Clock.Set(env.Clock.Time().Add(2 * blockcache.DefaultKeepTime))
	require.Equal(1, env.Cache.Purge())

	_, ok := env.Cache.GetCached(loser.ID())
	require.False(ok)
	_, tracked := c.status(loser.ID())
	require.False(tracked)
	require.Zero(env.Manager.Len())

	_, ok = env.Cache.GetCached(pending.ID())
	require.True(ok)

	c.drain(t)
	c.requireHead(t, pending)
}

func TestWithChainHead(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	var seen *block.Block
	require.NoError(c.WithChainHead(func(head *block.Block) error {
		seen = head
		return nil
	}))
	require.Equal(env.Genesis.ID(), seen.ID())
}

func TestInitializeRequiresMatchingState(t *testing.T) {
	require := require.New(t)
	env := journaltest.NewEnv(t)

	c, err := New(env.Cache, env.Store, &syncValidator{}, env.Manager, env.Engine, logging.NoLog{}, prometheus.NewRegistry())
	require.NoError(err)
	require.ErrorIs(c.WithChainHead(func(*block.Block) error { return nil }), ErrNotInitialized)

	// Commit state the store doesn't know about.
	blk := env.Build(t, env.Genesis, journaltest.PutBatch(t, env.Key, "k", "v"))
	v, err := validator.New(validator.Config{}, env.Cache, env.Store, env.Manager, env.Engine, trace.Noop, logging.NoLog{}, prometheus.NewRegistry())
	require.NoError(err)
	env.Cache.Put(blk)
	result := v.Validate(context.Background(), blk)
	require.Equal(validator.Valid, result.Verdict)
	sq, err := env.Manager.Squash(env.Genesis.StateRoot, []execution.ContextID{result.Context})
	require.NoError(err)
	require.NoError(env.Manager.Commit(sq))

	require.ErrorIs(c.Initialize(), ErrHeadStateMismatch)
}

func TestRunStopsOnCancel(t *testing.T) {
	env := journaltest.NewEnv(t)
	c := newTestChain(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "controller didn't stop")
	}
}
