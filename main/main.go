// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ava-labs/journal/app"
	"github.com/ava-labs/journal/config"
	"github.com/ava-labs/journal/utils/perms"
	"github.com/ava-labs/journal/version"
)

// GitCommit should be optionally set at compile time.
var GitCommit string

func main() {
	c, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Printf("couldn't get node config: %s\n", err)
		os.Exit(1)
	}
	if c.DisplayVersionAndExit {
		fmt.Print(version.String(GitCommit))
		os.Exit(0)
	}

	// Set the log directory permissions to be read write.
	if err := perms.ChmodR(c.LoggingConfig.Directory, true, perms.ReadWriteExecute); err != nil {
		fmt.Printf("failed to restrict the permissions of the log directory with error %s\n", err)
		os.Exit(1)
	}

	nodeApp, err := app.New(c)
	if err != nil {
		fmt.Printf("couldn't start node: %s\n", err)
		os.Exit(1)
	}
	os.Exit(app.Run(nodeApp))
}
