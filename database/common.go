// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package database

// A reset batch whose capacity exceeds MaxExcessCapacityFactor times its
// length is shrunk by CapacityReductionFactor.
const (
	MaxExcessCapacityFactor = 4
	CapacityReductionFactor = 2
)
