// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"fmt"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/hashing"
	"github.com/ava-labs/journal/utils/wrappers"
)

// Transaction is a signed request to a transaction family.
//
// Dependencies name transactions that must be committed, or released by the
// completer, before a batch carrying this transaction is admitted.
type Transaction struct {
	Signer       []byte
	Family       string
	Nonce        uint64
	Dependencies []ids.ID
	Payload      []byte
	Signature    []byte

	id    ids.ID
	bytes []byte
}

// NewTransaction builds and signs a transaction with [key].
func NewTransaction(
	key *secp256k1.PrivateKey,
	family string,
	nonce uint64,
	dependencies []ids.ID,
	payload []byte,
) (*Transaction, error) {
	tx := &Transaction{
		Signer:       key.PublicKey().Bytes(),
		Family:       family,
		Nonce:        nonce,
		Dependencies: dependencies,
		Payload:      payload,
	}
	unsigned, err := tx.unsignedBytes()
	if err != nil {
		return nil, err
	}
	tx.Signature, err = key.Sign(unsigned)
	if err != nil {
		return nil, err
	}
	return tx, tx.initialize()
}

// ParseTransaction decodes a transaction. Signatures are not checked.
func ParseTransaction(b []byte) (*Transaction, error) {
	p := &wrappers.Packer{Bytes: b}
	tx := unpackTransaction(p)
	if err := finishUnpack(p); err != nil {
		return nil, fmt.Errorf("couldn't parse transaction: %w", err)
	}
	return tx, tx.initialize()
}

func (tx *Transaction) ID() ids.ID {
	return tx.id
}

func (tx *Transaction) Bytes() []byte {
	return tx.bytes
}

// Verify checks the transaction is well formed and signed by its signer.
func (tx *Transaction) Verify() error {
	if tx.Family == "" {
		return ErrEmptyFamily
	}
	unsigned, err := tx.unsignedBytes()
	if err != nil {
		return err
	}
	if err := verifySignature(tx.Signer, unsigned, tx.Signature); err != nil {
		return fmt.Errorf("transaction %s: %w", tx.id, err)
	}
	return nil
}

func (tx *Transaction) initialize() error {
	p := newPacker()
	tx.pack(p)
	if p.Errored() {
		return p.Err
	}
	tx.bytes = p.Bytes
	tx.id = hashing.ComputeHash256Array(tx.bytes)
	return nil
}

func (tx *Transaction) unsignedBytes() ([]byte, error) {
	p := newPacker()
	tx.packUnsigned(p)
	return p.Bytes, p.Err
}

func (tx *Transaction) packUnsigned(p *wrappers.Packer) {
	p.PackBytes(tx.Signer)
	p.PackStr(tx.Family)
	p.PackLong(tx.Nonce)
	packIDs(p, tx.Dependencies)
	p.PackBytes(tx.Payload)
}

func (tx *Transaction) pack(p *wrappers.Packer) {
	tx.packUnsigned(p)
	p.PackBytes(tx.Signature)
}

func unpackTransaction(p *wrappers.Packer) *Transaction {
	return &Transaction{
		Signer:       p.UnpackLimitedBytes(secp256k1.PublicKeyLen),
		Family:       p.UnpackStr(),
		Nonce:        p.UnpackLong(),
		Dependencies: unpackIDs(p),
		Payload:      p.UnpackLimitedBytes(MaxSize),
		Signature:    p.UnpackLimitedBytes(secp256k1.SignatureLen),
	}
}
