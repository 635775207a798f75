// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackerRoundTrip(t *testing.T) {
	require := require.New(t)

	p := Packer{MaxSize: 1024}
	p.PackByte(0x01)
	p.PackShort(0x0203)
	p.PackInt(0x04050607)
	p.PackLong(0x08090a0b0c0d0e0f)
	p.PackBool(true)
	p.PackBytes([]byte{0x10, 0x11})
	p.PackStr("journal")
	require.NoError(p.Err)

	u := Packer{Bytes: p.Bytes}
	require.Equal(byte(0x01), u.UnpackByte())
	require.Equal(uint16(0x0203), u.UnpackShort())
	require.Equal(uint32(0x04050607), u.UnpackInt())
	require.Equal(uint64(0x08090a0b0c0d0e0f), u.UnpackLong())
	require.True(u.UnpackBool())
	require.Equal([]byte{0x10, 0x11}, u.UnpackBytes())
	require.Equal("journal", u.UnpackStr())
	require.NoError(u.Err)
	require.Equal(len(p.Bytes), u.Offset)
}

func TestPackerMaxSize(t *testing.T) {
	require := require.New(t)

	p := Packer{MaxSize: 3}
	p.PackInt(1)
	require.ErrorIs(p.Err, ErrInsufficientLength)
}

func TestUnpackerInsufficientLength(t *testing.T) {
	require := require.New(t)

	u := Packer{Bytes: []byte{0x00, 0x00, 0x00, 0x05, 0x01}}
	require.Nil(u.UnpackBytes())
	require.ErrorIs(u.Err, ErrInsufficientLength)
}

func TestUnpackBadBool(t *testing.T) {
	u := Packer{Bytes: []byte{0x02}}
	require.False(t, u.UnpackBool())
	require.ErrorIs(t, u.Err, errBadBool)
}

func TestUnpackLimitedBytes(t *testing.T) {
	require := require.New(t)

	p := Packer{MaxSize: 64}
	p.PackBytes([]byte{1, 2, 3, 4})
	require.NoError(p.Err)

	u := Packer{Bytes: p.Bytes}
	require.Nil(u.UnpackLimitedBytes(3))
	require.ErrorIs(u.Err, errOversized)
}
