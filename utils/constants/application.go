// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package constants

// Const variables to be exported
const (
	// AppName is the name of this application
	AppName = "journal"

	// PlatformName is the name of the chain this journal maintains
	PlatformName = "ledger"
)
