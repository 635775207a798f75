// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package secp256k1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	sk, err := NewPrivateKey()
	require.NoError(err)
	pk := sk.PublicKey()

	msg := []byte("block header")
	sig, err := sk.Sign(msg)
	require.NoError(err)
	require.Len(sig, SignatureLen)

	require.True(pk.Verify(msg, sig))
	require.False(pk.Verify([]byte("other header"), sig))

	other, err := NewPrivateKey()
	require.NoError(err)
	require.False(other.PublicKey().Verify(msg, sig))
}

func TestRecoverPublicKey(t *testing.T) {
	require := require.New(t)

	sk := TestKeys()[0]
	msg := []byte("batch header")
	sig, err := sk.Sign(msg)
	require.NoError(err)

	recovered, err := RecoverPublicKey(msg, sig)
	require.NoError(err)
	require.Equal(sk.PublicKey().Bytes(), recovered.Bytes())

	cache := NewRecoverCache(2)
	cached, err := cache.RecoverPublicKey(msg, sig)
	require.NoError(err)
	require.Equal(recovered.ID(), cached.ID())

	cachedAgain, err := cache.RecoverPublicKey(msg, sig)
	require.NoError(err)
	require.Same(cached, cachedAgain)
}

func TestInvalidSignatureLength(t *testing.T) {
	_, err := RecoverPublicKey([]byte("msg"), []byte{1, 2, 3})
	require.ErrorIs(t, err, errInvalidSigLen)
}

func TestPublicKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	pk := TestKeys()[1].PublicKey()
	parsed, err := ToPublicKey(pk.Bytes())
	require.NoError(err)
	require.Equal(pk.ID(), parsed.ID())

	_, err = ToPublicKey(pk.Bytes()[1:])
	require.ErrorIs(err, errInvalidPublicKeyLength)
}

func TestPrivateKeyJSON(t *testing.T) {
	require := require.New(t)

	sk := TestKeys()[2]
	b, err := json.Marshal(sk)
	require.NoError(err)

	parsed := &PrivateKey{}
	require.NoError(json.Unmarshal(b, parsed))
	require.Equal(sk.Bytes(), parsed.Bytes())

	require.ErrorIs(parsed.UnmarshalText([]byte("nope")), errMissingKeyPrefix)
}
