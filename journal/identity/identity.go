// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package identity reads the on-chain block producer allow-list.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/journal/cache"
	"github.com/ava-labs/journal/cache/lru"
	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/utils/set"
	"github.com/ava-labs/journal/utils/wrappers"
)

const DefaultCacheSize = 128

var (
	// ProducersKey holds the encoded list of public keys allowed to sign
	// blocks. If the key is unset every signer is allowed.
	ProducersKey = []byte("identity/block_producers")

	errTrailingBytes = errors.New("trailing bytes after producer list")
)

// EncodeProducers returns the state value that allows exactly [signers] to
// produce blocks.
func EncodeProducers(signers [][]byte) []byte {
	p := wrappers.Packer{MaxSize: wrappers.MaxStringLen * (len(signers) + 1)}
	p.PackInt(uint32(len(signers)))
	for _, signer := range signers {
		p.PackBytes(signer)
	}
	return p.Bytes
}

func DecodeProducers(b []byte) ([][]byte, error) {
	p := wrappers.Packer{Bytes: b}
	count := p.UnpackInt()
	var signers [][]byte
	for i := uint32(0); i < count && !p.Errored(); i++ {
		signers = append(signers, p.UnpackBytes())
	}
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, errTrailingBytes
	}
	return signers, nil
}

type producers struct {
	// restricted is false if no allow-list is set.
	restricted bool
	allowed    set.Set[string]
}

// Cache memoizes the allow-list per state root.
type Cache struct {
	lock    sync.Mutex
	entries cache.Cacher[ids.ID, *producers]
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		entries: lru.NewCache[ids.ID, *producers](size),
	}
}

// IsAllowed reports whether [signer] may produce a block on top of the state
// [root]. [state] must read the state at [root].
func (c *Cache) IsAllowed(root ids.ID, state execution.Reader, signer []byte) (bool, error) {
	p, err := c.get(root, state)
	if err != nil {
		return false, err
	}
	return !p.restricted || p.allowed.Contains(string(signer)), nil
}

func (c *Cache) get(root ids.ID, state execution.Reader) (*producers, error) {
	c.lock.Lock()
	p, ok := c.entries.Get(root)
	c.lock.Unlock()
	if ok {
		return p, nil
	}

	value, err := state.Get(ProducersKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
		p = &producers{}
	case err != nil:
		return nil, err
	default:
		signers, err := DecodeProducers(value)
		if err != nil {
			return nil, fmt.Errorf("couldn't decode producers at %s: %w", root, err)
		}
		p = &producers{
			restricted: true,
			allowed:    set.NewSet[string](len(signers)),
		}
		for _, signer := range signers {
			p.allowed.Add(string(signer))
		}
	}

	c.lock.Lock()
	c.entries.Put(root, p)
	c.lock.Unlock()
	return p, nil
}

// Flush drops every memoized allow-list.
func (c *Cache) Flush() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.entries.Flush()
}
