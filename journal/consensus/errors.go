// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import "errors"

var (
	ErrInvalidPayload      = errors.New("invalid consensus payload")
	ErrProducerNotAllowed  = errors.New("signer is not an allowed block producer")
	ErrNotAllowedToPublish = errors.New("local signer is not an allowed block producer")
)
