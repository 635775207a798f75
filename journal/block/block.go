// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/hashing"
	"github.com/ava-labs/journal/utils/set"
	"github.com/ava-labs/journal/utils/wrappers"
)

// minBatchSize is the smallest possible encoded batch.
const minBatchSize = 4 + 4 + 4 + 4

// Header is the signed portion of a block.
type Header struct {
	ParentID ids.ID
	Height   uint64
	// BatchIDs lists the block's batches in execution order.
	BatchIDs []ids.ID
	// StateRoot is the state root after executing every batch on top of the
	// parent's state root.
	StateRoot ids.ID
	Signer    []byte
	// Payload is opaque to everything except the consensus engine.
	Payload []byte
}

type Block struct {
	Header
	Signature []byte
	Batches   []*Batch

	id    ids.ID
	bytes []byte
}

// Build creates a block on top of [parentID] and signs it with [key].
func Build(
	parentID ids.ID,
	height uint64,
	stateRoot ids.ID,
	payload []byte,
	batches []*Batch,
	key *secp256k1.PrivateKey,
) (*Block, error) {
	batchIDs := make([]ids.ID, len(batches))
	for i, batch := range batches {
		batchIDs[i] = batch.ID()
	}
	blk := &Block{
		Header: Header{
			ParentID:  parentID,
			Height:    height,
			BatchIDs:  batchIDs,
			StateRoot: stateRoot,
			Signer:    key.PublicKey().Bytes(),
			Payload:   payload,
		},
		Batches: batches,
	}
	header, err := blk.headerBytes()
	if err != nil {
		return nil, err
	}
	blk.Signature, err = key.Sign(header)
	if err != nil {
		return nil, err
	}
	return blk, blk.initialize()
}

// Parse decodes a block. Signatures are not checked; call Verify.
func Parse(bytes []byte) (*Block, error) {
	p := &wrappers.Packer{Bytes: bytes}
	blk := &Block{
		Header: Header{
			ParentID:  unpackID(p),
			Height:    p.UnpackLong(),
			BatchIDs:  unpackIDs(p),
			StateRoot: unpackID(p),
			Signer:    p.UnpackLimitedBytes(secp256k1.PublicKeyLen),
			Payload:   p.UnpackLimitedBytes(MaxSize),
		},
		Signature: p.UnpackLimitedBytes(secp256k1.SignatureLen),
	}
	count := unpackCount(p, minBatchSize)
	if !p.Errored() {
		blk.Batches = make([]*Batch, count)
		for i := range blk.Batches {
			batch := unpackBatch(p)
			if p.Errored() {
				break
			}
			if err := batch.initialize(); err != nil {
				p.Add(err)
				break
			}
			blk.Batches[i] = batch
		}
	}
	if err := finishUnpack(p); err != nil {
		return nil, fmt.Errorf("couldn't parse block: %w", err)
	}
	return blk, blk.initialize()
}

// ID is the hash of the signed header.
func (b *Block) ID() ids.ID {
	return b.id
}

func (b *Block) Parent() ids.ID {
	return b.ParentID
}

func (b *Block) Bytes() []byte {
	return b.bytes
}

// Verify performs the checks that need no state: the header signature, the
// batch ID list, batch and transaction signatures and duplicates within the
// block.
func (b *Block) Verify() error {
	if b.Height == 0 && b.ParentID != ids.Empty {
		return ErrGenesisParent
	}
	header, err := b.headerBytes()
	if err != nil {
		return err
	}
	if err := verifySignature(b.Signer, header, b.Signature); err != nil {
		return fmt.Errorf("block %s: %w", b.id, err)
	}

	batchIDs := make([]ids.ID, len(b.Batches))
	for i, batch := range b.Batches {
		batchIDs[i] = batch.ID()
	}
	if !slices.Equal(batchIDs, b.BatchIDs) {
		return ErrBatchIDMismatch
	}

	var (
		seenBatches = set.NewSet[ids.ID](len(b.Batches))
		seenTxs     set.Set[ids.ID]
	)
	for _, batch := range b.Batches {
		batchID := batch.ID()
		if seenBatches.Contains(batchID) {
			return fmt.Errorf("%w %s in block %s", ErrDuplicateBatch, batchID, b.id)
		}
		seenBatches.Add(batchID)

		for _, tx := range batch.Transactions {
			txID := tx.ID()
			if seenTxs.Contains(txID) {
				return fmt.Errorf("%w %s in block %s", ErrDuplicateTx, txID, b.id)
			}
			seenTxs.Add(txID)
		}
		if err := batch.Verify(); err != nil {
			return err
		}
	}
	return nil
}

// TxIDs returns the IDs of every transaction in the block in execution order.
func (b *Block) TxIDs() []ids.ID {
	var txIDs []ids.ID
	for _, batch := range b.Batches {
		txIDs = append(txIDs, batch.TxIDs()...)
	}
	return txIDs
}

func (b *Block) String() string {
	return fmt.Sprintf("%s (height %d)", b.id, b.Height)
}

func (b *Block) initialize() error {
	header, err := b.headerBytes()
	if err != nil {
		return err
	}
	p := newPacker()
	p.PackFixedBytes(header)
	p.PackBytes(b.Signature)
	b.id = hashing.ComputeHash256Array(p.Bytes)

	p.PackInt(uint32(len(b.Batches)))
	for _, batch := range b.Batches {
		batch.pack(p)
	}
	if p.Errored() {
		return p.Err
	}
	b.bytes = p.Bytes
	return nil
}

func (b *Block) headerBytes() ([]byte, error) {
	p := newPacker()
	p.PackFixedBytes(b.ParentID[:])
	p.PackLong(b.Height)
	packIDs(p, b.BatchIDs)
	p.PackFixedBytes(b.StateRoot[:])
	p.PackBytes(b.Signer)
	p.PackBytes(b.Payload)
	return p.Bytes, p.Err
}
