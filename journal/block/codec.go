// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"errors"
	"fmt"

	"github.com/ava-labs/journal/ids"
	"github.com/ava-labs/journal/utils/constants"
	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/wrappers"
)

// MaxSize bounds the encoded size of a block, batch or transaction.
const MaxSize = constants.DefaultMaxMessageSize

var (
	errTrailingBytes  = errors.New("trailing bytes after encoding")
	errTooManyItems   = errors.New("list length exceeds remaining bytes")
	errHeaderMismatch = errors.New("header transaction IDs do not match transactions")
)

func newPacker() *wrappers.Packer {
	return &wrappers.Packer{
		MaxSize: MaxSize,
		Bytes:   make([]byte, 0, 256),
	}
}

func packIDs(p *wrappers.Packer, idList []ids.ID) {
	p.PackInt(uint32(len(idList)))
	for _, id := range idList {
		p.PackFixedBytes(id[:])
	}
}

func unpackIDs(p *wrappers.Packer) []ids.ID {
	count := unpackCount(p, ids.IDLen)
	if p.Errored() || count == 0 {
		return nil
	}
	idList := make([]ids.ID, count)
	for i := range idList {
		copy(idList[i][:], p.UnpackFixedBytes(ids.IDLen))
	}
	return idList
}

func unpackID(p *wrappers.Packer) ids.ID {
	var id ids.ID
	copy(id[:], p.UnpackFixedBytes(ids.IDLen))
	return id
}

// unpackCount reads a list length and rejects lengths that could not fit in
// the remaining bytes given the minimum encoded size of one element.
func unpackCount(p *wrappers.Packer, minElemSize int) int {
	count := int(p.UnpackInt())
	if p.Errored() {
		return 0
	}
	if count*minElemSize > len(p.Bytes)-p.Offset {
		p.Add(errTooManyItems)
		return 0
	}
	return count
}

func finishUnpack(p *wrappers.Packer) error {
	if p.Errored() {
		return p.Err
	}
	if p.Offset != len(p.Bytes) {
		return fmt.Errorf("%w: %d", errTrailingBytes, len(p.Bytes)-p.Offset)
	}
	return nil
}

// verifySignature checks that [sig] over [msg] was produced by the holder of
// the compressed public key [signer].
func verifySignature(signer, msg, sig []byte) error {
	pk, err := secp256k1.ToPublicKey(signer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSigner, err)
	}
	if !pk.Verify(msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
