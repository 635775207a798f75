// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execution

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

const namespace = "execution"

type metrics struct {
	contexts prometheus.Gauge

	batchesExecuted,
	batchesFailed,
	commits,
	rolledBack prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		contexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contexts",
			Help:      "Number of open speculative execution contexts",
		}),
		batchesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_executed",
			Help:      "Number of batches executed in speculative contexts",
		}),
		batchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed",
			Help:      "Number of executed batches with a failed transaction",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits",
			Help:      "Number of contexts committed to durable state",
		}),
		rolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rolled_back",
			Help:      "Number of committed roots reverted by a squash",
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.contexts),
		reg.Register(m.batchesExecuted),
		reg.Register(m.batchesFailed),
		reg.Register(m.commits),
		reg.Register(m.rolledBack),
	)
	return m, errs.Err
}
