// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package app

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

type App interface {
	// Start kicks off the application and returns immediately
	Start() error

	// Stop notifies the application to exit and returns immediately
	Stop() error

	// ExitCode should only be called after [Start] returns with no error. It
	// should block until the application finishes
	ExitCode() (int, error)
}

// Run starts [app] and stops it on SIGINT or SIGTERM. The returned value is
// the process exit code.
func Run(app App) int {
	if err := app.Start(); err != nil {
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	var eg errgroup.Group
	eg.Go(func() error {
		for range signals {
			return app.Stop()
		}
		return nil
	})

	exitCode, err := app.ExitCode()

	signal.Stop(signals)
	close(signals)

	if err := eg.Wait(); err != nil {
		return 1
	}
	if err != nil {
		return 1
	}
	return exitCode
}
