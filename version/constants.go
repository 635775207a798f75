// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import "github.com/ava-labs/journal/utils/constants"

// CurrentDatabase is bumped whenever the layout of the block store or the
// committed state changes.
const CurrentDatabase = "v1.0.0"

// Current is the version of this node.
var Current = &Application{
	Name:  constants.AppName,
	Major: 1,
	Minor: 0,
	Patch: 0,
}
