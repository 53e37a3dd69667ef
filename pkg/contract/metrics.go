// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contract

import (
	m "github.com/ethersphere/price-discovery/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	ReturnCodes *prometheus.CounterVec
}

func newMetrics() metrics {
	return metrics{
		ReturnCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: "contract",
			Name:      "return_codes",
			Help:      "Count of contract interactions by kind and return code",
		}, []string{"kind", "code"}),
	}
}

func (c *controller) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(c.metrics)
}
