// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/journal/utils/wrappers"
)

const namespace = "validator"

type metrics struct {
	validations *prometheus.CounterVec
	faults      prometheus.Counter
	queued      prometheus.Gauge
	duration    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations",
				Help:      "Number of blocks validated, by verdict",
			},
			[]string{"verdict"},
		),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_faults",
			Help:      "Number of validations aborted by an execution fault",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued",
			Help:      "Number of blocks waiting for a validation worker",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Time spent validating a block",
			Buckets:   prometheus.ExponentialBuckets(.001, 4, 8),
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.validations),
		reg.Register(m.faults),
		reg.Register(m.queued),
		reg.Register(m.duration),
	)
	return m, errs.Err
}
