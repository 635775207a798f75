// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockcache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

const namespace = "blockcache"

type metrics struct {
	blocks prometheus.Gauge

	evicted,
	protected prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocks",
			Help:      "Number of uncommitted blocks held in memory",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted",
			Help:      "Number of expired blocks evicted",
		}),
		protected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protected",
			Help:      "Number of expired blocks kept because they were in use",
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.blocks),
		reg.Register(m.evicted),
		reg.Register(m.protected),
	)
	return m, errs.Err
}
