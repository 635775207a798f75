// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

const namespace = "chain"

type metrics struct {
	headHeight,
	tracked prometheus.Gauge

	committed,
	reorgs,
	invalid,
	forkChoiceFailures,
	observerFailures prometheus.Counter

	reorgDepth prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		headHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "head_height",
			Help:      "Height of the chain head",
		}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_blocks",
			Help:      "Number of uncommitted blocks known to the controller",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_blocks",
			Help:      "Number of blocks added to the canonical chain",
		}),
		reorgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reorgs",
			Help:      "Number of head changes that removed blocks from the canonical chain",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_blocks",
			Help:      "Number of blocks marked invalid",
		}),
		forkChoiceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fork_choice_failures",
			Help:      "Number of fork choices aborted because the fork point could not be found",
		}),
		observerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_failures",
			Help:      "Number of chain updates an observer failed to process",
		}),
		reorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reorg_depth",
			Help:      "Number of blocks removed from the canonical chain per reorg",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.headHeight),
		reg.Register(m.tracked),
		reg.Register(m.committed),
		reg.Register(m.reorgs),
		reg.Register(m.invalid),
		reg.Register(m.forkChoiceFailures),
		reg.Register(m.observerFailures),
		reg.Register(m.reorgDepth),
	)
	return m, errs.Err
}
