// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package devmode is a consensus engine for single-node and test networks.
// Every allowed producer may build on any block and the longest chain wins.
package devmode

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ava-labs/journal/journal/block"
	"github.com/ava-labs/journal/journal/consensus"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/identity"
)

// Payload is carried by every block produced in dev mode.
var Payload = []byte("Devmode")

var _ consensus.Engine = (*Engine)(nil)

type Engine struct {
	identities *identity.Cache
	// signer is the public key of the local producer.
	signer []byte
}

func New(identities *identity.Cache, signer []byte) *Engine {
	return &Engine{
		identities: identities,
		signer:     signer,
	}
}

func (e *Engine) VerifyBlock(_ context.Context, blk, parent *block.Block, state execution.Reader) error {
	if !bytes.Equal(blk.Payload, Payload) {
		return fmt.Errorf("%w: %q", consensus.ErrInvalidPayload, blk.Payload)
	}
	allowed, err := e.identities.IsAllowed(parent.StateRoot, state, blk.Signer)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %x", consensus.ErrProducerNotAllowed, blk.Signer)
	}
	return nil
}

// ChainWeight is the length of the chain.
func (*Engine) ChainWeight(_ context.Context, blk *block.Block) (*big.Int, error) {
	weight := new(big.Int).SetUint64(blk.Height)
	return weight.Add(weight, big.NewInt(1)), nil
}

// TieBreak prefers the block with the lowest ID.
func (*Engine) TieBreak(a, b *block.Block) *block.Block {
	if b.ID().Compare(a.ID()) < 0 {
		return b
	}
	return a
}

func (e *Engine) Payload(_ context.Context, parent *block.Block, state execution.Reader) ([]byte, error) {
	allowed, err := e.identities.IsAllowed(parent.StateRoot, state, e.signer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, consensus.ErrNotAllowedToPublish
	}
	return Payload, nil
}
