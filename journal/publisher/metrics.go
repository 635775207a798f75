// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package publisher

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

const namespace = "publisher"

type metrics struct {
	pending prometheus.Gauge

	published,
	invalidBatches,
	staleCandidates prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_batches",
			Help:      "Number of batches waiting to be included in a block",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_blocks",
			Help:      "Number of blocks built and sent",
		}),
		invalidBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_batches",
			Help:      "Number of pending batches dropped because they failed execution",
		}),
		staleCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_candidates",
			Help:      "Number of candidate blocks abandoned because the chain head changed",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.pending),
		reg.Register(m.published),
		reg.Register(m.invalidBatches),
		reg.Register(m.staleCandidates),
	)
	return m, errs.Err
}
