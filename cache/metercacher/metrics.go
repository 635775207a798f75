// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metercacher

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

type metrics struct {
	hit,
	miss prometheus.Counter

	len           prometheus.Gauge
	portionFilled prometheus.Gauge
}

func newMetrics(
	namespace string,
	reg prometheus.Registerer,
) (*metrics, error) {
	m := &metrics{
		hit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hit",
			Help:      "Number of successful cache lookups",
		}),
		miss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "miss",
			Help:      "Number of failed cache lookups",
		}),
		len: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "len",
			Help:      "number of entries",
		}),
		portionFilled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portion_filled",
			Help:      "fraction of cache filled",
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.hit),
		reg.Register(m.miss),
		reg.Register(m.len),
		reg.Register(m.portionFilled),
	)
	return m, errs.Err
}
