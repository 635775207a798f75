// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package constants

import "github.com/ava-labs/journal/utils/units"

// DefaultMaxMessageSize bounds an encoded block and everything it carries.
const DefaultMaxMessageSize = 2 * units.MiB
