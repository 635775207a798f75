// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockcache holds blocks that are not part of the committed chain
// and falls back to the block store for those that are.
package blockcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/timer/mockable"
)

const (
	DefaultKeepTime       = 300 * time.Second
	DefaultPurgeFrequency = 30 * time.Second
)

// Store is the durable source of committed blocks.
type Store interface {
	Get(blkID ids.ID) (*block.Block, error)
	Has(blkID ids.ID) (bool, error)
}

type Config struct {
	// KeepTime is how long an unused block stays cached after its last access.
	KeepTime time.Duration
	// PurgeFrequency is the period of the eviction sweep.
	PurgeFrequency time.Duration
	// Clock is used to track access times. Defaults to the wall clock.
	Clock *mockable.Clock
}

type entry struct {
	blk        *block.Block
	lastAccess time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	log            logging.Logger
	metrics        *metrics
	clock          *mockable.Clock
	store          Store
	keepTime       time.Duration
	purgeFrequency time.Duration

	lock    sync.Mutex
	blocks  map[ids.ID]*entry
	inUse   []func(ids.ID) bool
	onEvict func(*block.Block)
}

func New(config Config, store Store, log logging.Logger, reg prometheus.Registerer) (*Cache, error) {
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		log:            log,
		metrics:        metrics,
		clock:          config.Clock,
		store:          store,
		keepTime:       config.KeepTime,
		purgeFrequency: config.PurgeFrequency,
		blocks:         make(map[ids.ID]*entry),
	}
	if c.clock == nil {
		c.clock = &mockable.Clock{}
	}
	if c.keepTime <= 0 {
		c.keepTime = DefaultKeepTime
	}
	if c.purgeFrequency <= 0 {
		c.purgeFrequency = DefaultPurgeFrequency
	}
	return c, nil
}

// Put inserts [blk] or refreshes its last access time.
func (c *Cache) Put(blk *block.Block) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.blocks[blk.ID()] = &entry{
		blk:        blk,
		lastAccess: c.clock.Time(),
	}
	c.metrics.blocks.Set(float64(len(c.blocks)))
}

// Get returns the block from memory or, if it was committed, from the store.
// Returns database.ErrNotFound if the block is unknown.
func (c *Cache) Get(blkID ids.ID) (*block.Block, error) {
	if blk, ok := c.getCached(blkID); ok {
		return blk, nil
	}
	return c.store.Get(blkID)
}

// GetCached only looks at blocks held in memory.
func (c *Cache) GetCached(blkID ids.ID) (*block.Block, bool) {
	return c.getCached(blkID)
}

func (c *Cache) getCached(blkID ids.ID) (*block.Block, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	e, ok := c.blocks[blkID]
	if !ok {
		return nil, false
	}
	e.lastAccess = c.clock.Time()
	return e.blk, true
}

// Contains reports whether the block is cached or committed. A store error is
// logged and reported as not found.
func (c *Cache) Contains(blkID ids.ID) bool {
	if _, ok := c.getCached(blkID); ok {
		return true
	}
	has, err := c.store.Has(blkID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		c.log.Error("couldn't check block store",
			zap.Stringer("blkID", blkID),
			zap.Error(err),
		)
		return false
	}
	return has
}

// Promote drops a block from memory once it is durably committed.
func (c *Cache) Promote(blkID ids.ID) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.blocks, blkID)
	c.metrics.blocks.Set(float64(len(c.blocks)))
}

// RegisterInUse adds a predicate that protects blocks from eviction.
func (c *Cache) RegisterInUse(inUse func(ids.ID) bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.inUse = append(c.inUse, inUse)
}

// SetOnEvict registers a function called with every evicted block.
func (c *Cache) SetOnEvict(onEvict func(*block.Block)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onEvict = onEvict
}

func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.blocks)
}

// Purge evicts every block that was not accessed within the keep time and
// that no registered predicate reports as in use. It returns the number of
// evicted blocks.
func (c *Cache) Purge() int {
	c.lock.Lock()
	var (
		cutoff     = c.clock.Time().Add(-c.keepTime)
		candidates []*block.Block
		inUse      = c.inUse
		onEvict    = c.onEvict
	)
	for _, e := range c.blocks {
		if e.lastAccess.Before(cutoff) {
			candidates = append(candidates, e.blk)
		}
	}
	c.lock.Unlock()

	// The predicates take other components' locks, so they are evaluated
	// without holding the cache lock.
	expired := candidates[:0]
	for _, blk := range candidates {
		if isInUse(inUse, blk.ID()) {
			c.metrics.protected.Inc()
			continue
		}
		expired = append(expired, blk)
	}

	c.lock.Lock()
	evicted := make([]*block.Block, 0, len(expired))
	for _, blk := range expired {
		blkID := blk.ID()
		e, ok := c.blocks[blkID]
		// Skip blocks that were touched since the snapshot.
		if !ok || !e.lastAccess.Before(cutoff) {
			continue
		}
		delete(c.blocks, blkID)
		evicted = append(evicted, blk)
	}
	c.metrics.blocks.Set(float64(len(c.blocks)))
	c.lock.Unlock()

	c.metrics.evicted.Add(float64(len(evicted)))
	for _, blk := range evicted {
		c.log.Debug("evicted block",
			zap.Stringer("blkID", blk.ID()),
			zap.Uint64("height", blk.Height),
		)
		if onEvict != nil {
			onEvict(blk)
		}
	}
	return len(evicted)
}

func isInUse(inUse []func(ids.ID) bool, blkID ids.ID) bool {
	for _, pred := range inUse {
		if pred(blkID) {
			return true
		}
	}
	return false
}

// Run purges the cache every purge period until [ctx] is done.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.purgeFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Purge()
		}
	}
}
