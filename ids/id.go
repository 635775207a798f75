// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ava-labs/journal/utils/cb58"
	"github.com/ava-labs/journal/utils/hashing"
)

const (
	IDLen = 32

	nullStr = "null"
)

var (
	// Empty is a useful all zero value
	Empty = ID{}

	errMissingQuotes = errors.New("first and last characters should be quotes")
)

// ID wraps a 32 byte hash used as an identifier
type ID [IDLen]byte

// ToID attempt to convert a byte slice into an id
func ToID(bytes []byte) (ID, error) {
	return hashing.ToHash256(bytes)
}

// FromString is the inverse of ID.String()
func FromString(idStr string) (ID, error) {
	bytes, err := cb58.Decode(idStr)
	if err != nil {
		return ID{}, err
	}
	return ToID(bytes)
}

// FromHex parses an ID from its hex form, with or without a 0x prefix.
func FromHex(idStr string) (ID, error) {
	if len(idStr) >= 2 && idStr[0] == '0' && (idStr[1] == 'x' || idStr[1] == 'X') {
		idStr = idStr[2:]
	}
	bytes, err := hex.DecodeString(idStr)
	if err != nil {
		return ID{}, err
	}
	return ToID(bytes)
}

// Compute returns the ID of the provided bytes.
func Compute(bytes []byte) ID {
	return hashing.ComputeHash256Array(bytes)
}

func (id ID) MarshalJSON() ([]byte, error) {
	str, err := cb58.Encode(id[:])
	if err != nil {
		return nil, err
	}
	return []byte("\"" + str + "\""), nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == nullStr { // If "null", do nothing
		return nil
	} else if len(str) < 2 {
		return errMissingQuotes
	}

	lastIndex := len(str) - 1
	if str[0] != '"' || str[lastIndex] != '"' {
		return errMissingQuotes
	}

	// Parse CB58 formatted string to bytes
	bytes, err := cb58.Decode(str[1:lastIndex])
	if err != nil {
		return fmt.Errorf("couldn't decode ID to bytes: %w", err)
	}
	*id, err = ToID(bytes)
	return err
}

// Bytes returns the 32 byte hash as a slice. It is assumed this slice is not
// modified.
func (id ID) Bytes() []byte {
	return id[:]
}

func (id ID) String() string {
	// We assume that the maximum size of a byte slice that
	// can be stringified is at least the length of an ID
	s, _ := cb58.Encode(id[:])
	return s
}

// Hex returns a hex encoded string of this id.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Compare orders IDs by their big-endian byte value.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Prefix this id to create a more selective id. This can be used to store
// multiple values under the same key. For example:
// prefix1(id) -> confidence
// prefix2(id) -> vertex
// This will return a new id and not modify the original id.
func (id ID) Prefix(prefixes ...uint64) ID {
	packed := make([]byte, 0, len(prefixes)*8+IDLen)
	for _, prefix := range prefixes {
		packed = binary.BigEndian.AppendUint64(packed, prefix)
	}
	packed = append(packed, id[:]...)
	return hashing.ComputeHash256Array(packed)
}
