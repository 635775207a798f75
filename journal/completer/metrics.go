// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package completer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

const namespace = "completer"

type metrics struct {
	pendingBlocks,
	pendingBatches,
	outstandingRequests prometheus.Gauge

	requests,
	droppedBlocks,
	droppedBatches prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		pendingBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_blocks",
			Help:      "Number of blocks waiting on a missing ancestor",
		}),
		pendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_batches",
			Help:      "Number of batches waiting on missing transactions",
		}),
		outstandingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_requests",
			Help:      "Number of missing dependencies being requested",
		}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests",
			Help:      "Number of requests sent for missing dependencies",
		}),
		droppedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_blocks",
			Help:      "Number of blocks dropped because a dependency never resolved",
		}),
		droppedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_batches",
			Help:      "Number of batches dropped because a dependency never resolved",
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.pendingBlocks),
		reg.Register(m.pendingBatches),
		reg.Register(m.outstandingRequests),
		reg.Register(m.requests),
		reg.Register(m.droppedBlocks),
		reg.Register(m.droppedBatches),
	)
	return m, errs.Err
}
