// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/journal/config"
	"github.com/ava-labs/journal/database"
	"github.com/ava-labs/journal/database/factory"
	"github.com/ava-labs/journal/journal"
	"github.com/ava-labs/journal/journal/execution"
	"github.com/ava-labs/journal/journal/execution/kv"
	"github.com/ava-labs/journal/journal/network"
	"github.com/ava-labs/journal/journal/publisher"
	"github.com/ava-labs/journal/trace"
	"github.com/ava-labs/journal/utils/logging"
	"github.com/ava-labs/journal/utils/wrappers"
	"github.com/ava-labs/journal/version"
)

var _ App = (*node)(nil)

type node struct {
	config     config.Config
	logFactory logging.Factory
	log        logging.Logger

	db      database.Database
	tracer  trace.Tracer
	journal *journal.Journal
	started bool

	cancel   context.CancelFunc
	builder  sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
	exitErr  error
}

// New returns an App running a single journal node over [config]. Blocks
// are only shared with peers that the embedding process connects through a
// network.Network, so the standalone node gossips to no one.
func New(config config.Config) (App, error) {
	logFactory := logging.NewFactory(config.LoggingConfig)
	log, err := logFactory.Make("main")
	if err != nil {
		logFactory.Close()
		return nil, fmt.Errorf("failed to initialize log: %w", err)
	}
	return &node{
		config:     config,
		logFactory: logFactory,
		log:        log,
		done:       make(chan struct{}),
	}, nil
}

func (n *node) Start() error {
	n.log.Info("starting node",
		zap.Stringer("version", version.Current),
		zap.String("dataDir", n.config.DataDir),
	)

	if err := n.start(); err != nil {
		n.log.Fatal("failed to start node", zap.Error(err))
		n.close()
		return err
	}
	return nil
}

func (n *node) start() error {
	key, err := config.LoadKey(n.config.KeyPath)
	if err != nil {
		return err
	}
	n.db, err = factory.NewDatabase(n.config.DatabaseConfig, n.log)
	if err != nil {
		return err
	}
	n.tracer, err = trace.New(n.config.TraceConfig)
	if err != nil {
		return fmt.Errorf("couldn't initialize tracer: %w", err)
	}

	n.journal, err = journal.New(
		n.config.JournalConfig,
		n.db,
		network.NoOp{},
		key,
		nil,
		[]execution.Handler{&kv.Handler{}},
		n.tracer,
		n.log,
		prometheus.NewRegistry(),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	if err := n.journal.Start(ctx); err != nil {
		return err
	}
	n.started = true
	n.log.Info("block producer",
		zap.Stringer("publicKey", key.PublicKey()),
		zap.Duration("buildInterval", n.config.BuildInterval),
	)
	if n.config.BuildInterval > 0 {
		n.builder.Add(1)
		go n.build(ctx)
	}
	return nil
}

// build tries to publish a block every build interval until [ctx] is done.
func (n *node) build(ctx context.Context) {
	defer n.builder.Done()

	ticker := time.NewTicker(n.config.BuildInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		blk, err := n.journal.BuildBlock(ctx)
		switch {
		case err == nil:
			n.log.Debug("built block",
				zap.Stringer("blkID", blk.ID()),
				zap.Uint64("height", blk.Height),
			)
		case errors.Is(err, publisher.ErrNoBatches), errors.Is(err, publisher.ErrStaleHead), ctx.Err() != nil:
		default:
			n.log.Warn("failed to build block", zap.Error(err))
		}
	}
}

func (n *node) Stop() error {
	n.stopOnce.Do(func() {
		n.log.Info("stopping node")
		n.close()
	})
	return nil
}

func (n *node) close() {
	errs := wrappers.Errs{}
	if n.cancel != nil {
		n.cancel()
	}
	n.builder.Wait()
	if n.started {
		errs.Add(n.journal.Shutdown())
	}
	if n.tracer != nil {
		errs.Add(n.tracer.Close())
	}
	if n.db != nil {
		errs.Add(n.db.Close())
	}
	if errs.Err != nil {
		n.log.Error("failed to stop cleanly", zap.Error(errs.Err))
	}
	n.exitErr = errs.Err
	n.logFactory.Close()
	select {
	case <-n.done:
	default:
		close(n.done)
	}
}

func (n *node) ExitCode() (int, error) {
	<-n.done
	if n.exitErr != nil {
		return 1, nil
	}
	return 0, nil
}
