// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ava-labs/journal/utils/crypto/secp256k1"
	"github.com/ava-labs/journal/utils/perms"
)

// LoadKey reads the signing key at [path]. If the file doesn't exist, a new
// key is generated and written to it.
func LoadKey(path string) (*secp256k1.PrivateKey, error) {
	text, err := os.ReadFile(path)
	if err == nil {
		key := &secp256k1.PrivateKey{}
		if err := key.UnmarshalText(bytes.TrimSpace(text)); err != nil {
			return nil, fmt.Errorf("couldn't parse key at %s: %w", path, err)
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	key, err := secp256k1.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("couldn't generate key: %w", err)
	}
	text, err = key.MarshalText()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), perms.ReadWriteExecute); err != nil {
		return nil, fmt.Errorf("couldn't create key directory: %w", err)
	}
	if err := os.WriteFile(path, text, perms.ReadOnly); err != nil {
		return nil, fmt.Errorf("couldn't write key to %s: %w", path, err)
	}
	return key, nil
}
