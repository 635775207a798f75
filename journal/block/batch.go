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

// minTxSize is the smallest possible encoded transaction.
const minTxSize = 4 + 2 + 8 + 4 + 4 + 4

// Batch is an atomic group of transactions. Either every transaction in the
// batch takes effect or none of them do.
type Batch struct {
	Signer       []byte
	Transactions []*Transaction
	// Signature covers the signer and the ordered transaction IDs.
	Signature []byte

	id    ids.ID
	bytes []byte
}

// NewBatch builds and signs a batch of [txs] with [key].
func NewBatch(key *secp256k1.PrivateKey, txs []*Transaction) (*Batch, error) {
	b := &Batch{
		Signer:       key.PublicKey().Bytes(),
		Transactions: txs,
	}
	header, err := b.headerBytes()
	if err != nil {
		return nil, err
	}
	b.Signature, err = key.Sign(header)
	if err != nil {
		return nil, err
	}
	return b, b.initialize()
}

// ParseBatch decodes a batch. Signatures are not checked.
func ParseBatch(bytes []byte) (*Batch, error) {
	p := &wrappers.Packer{Bytes: bytes}
	b := unpackBatch(p)
	if err := finishUnpack(p); err != nil {
		return nil, fmt.Errorf("couldn't parse batch: %w", err)
	}
	return b, b.initialize()
}

// ID is the hash of the signed batch header.
func (b *Batch) ID() ids.ID {
	return b.id
}

func (b *Batch) Bytes() []byte {
	return b.bytes
}

// TxIDs returns the IDs of the batch's transactions in order.
func (b *Batch) TxIDs() []ids.ID {
	txIDs := make([]ids.ID, len(b.Transactions))
	for i, tx := range b.Transactions {
		txIDs[i] = tx.ID()
	}
	return txIDs
}

// Verify checks the batch signature and every transaction in it.
func (b *Batch) Verify() error {
	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}
	header, err := b.headerBytes()
	if err != nil {
		return err
	}
	if err := verifySignature(b.Signer, header, b.Signature); err != nil {
		return fmt.Errorf("batch %s: %w", b.id, err)
	}

	txIDs := set.NewSet[ids.ID](len(b.Transactions))
	for _, tx := range b.Transactions {
		txID := tx.ID()
		if txIDs.Contains(txID) {
			return fmt.Errorf("%w %s in batch %s", ErrDuplicateTx, txID, b.id)
		}
		txIDs.Add(txID)
		if err := tx.Verify(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) initialize() error {
	header, err := b.headerBytes()
	if err != nil {
		return err
	}
	p := newPacker()
	p.PackFixedBytes(header)
	p.PackBytes(b.Signature)
	b.id = hashing.ComputeHash256Array(p.Bytes)

	b.packBody(p)
	if p.Errored() {
		return p.Err
	}
	b.bytes = p.Bytes
	return nil
}

func (b *Batch) headerBytes() ([]byte, error) {
	p := newPacker()
	p.PackBytes(b.Signer)
	packIDs(p, b.TxIDs())
	return p.Bytes, p.Err
}

func (b *Batch) pack(p *wrappers.Packer) {
	p.PackFixedBytes(b.bytes)
}

func (b *Batch) packBody(p *wrappers.Packer) {
	p.PackInt(uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		tx.pack(p)
	}
}

func unpackBatch(p *wrappers.Packer) *Batch {
	b := &Batch{
		Signer: p.UnpackLimitedBytes(secp256k1.PublicKeyLen),
	}
	// The header repeats the transaction IDs, which are recomputed from the
	// transactions themselves.
	headerIDs := unpackIDs(p)
	b.Signature = p.UnpackLimitedBytes(secp256k1.SignatureLen)

	count := unpackCount(p, minTxSize)
	if p.Errored() {
		return b
	}
	b.Transactions = make([]*Transaction, count)
	for i := range b.Transactions {
		tx := unpackTransaction(p)
		if p.Errored() {
			return b
		}
		if err := tx.initialize(); err != nil {
			p.Add(err)
			return b
		}
		b.Transactions[i] = tx
	}
	if !slices.Equal(headerIDs, b.TxIDs()) {
		p.Add(errHeaderMismatch)
	}
	return b
}
