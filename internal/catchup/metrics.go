// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "factstore_catchup"

// Collector is a prometheus.Collector that collects metrics about catchup
// executions.
type Collector struct {
	deliveredFacts   *prometheus.CounterVec
	transformedFacts prometheus.Counter
	duration         *prometheus.HistogramVec
	matchSetSize     prometheus.Histogram
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		deliveredFacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "delivered_facts_total",
				Help:      "The number of facts delivered by catchups.",
			}, []string{"strategy"},
		),
		transformedFacts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transformed_facts_total",
				Help:      "The number of facts submitted for transformation.",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "duration_seconds",
				Help:      "The time taken by a catchup execution.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60, 300},
			}, []string{"strategy", "phase"},
		),
		matchSetSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "match_set_size",
				Help:      "The number of serials matched by a catchup execution.",
				Buckets:   prometheus.ExponentialBuckets(1, 10, 7),
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.deliveredFacts.Describe(ch)
	c.transformedFacts.Describe(ch)
	c.duration.Describe(ch)
	c.matchSetSize.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.deliveredFacts.Collect(ch)
	c.transformedFacts.Collect(ch)
	c.duration.Collect(ch)
	c.matchSetSize.Collect(ch)
}

func (c *Collector) observe(strategy Strategy, phase Phase, result Result, transformed int, seconds float64) {
	if c == nil {
		return
	}
	c.deliveredFacts.WithLabelValues(string(strategy)).Add(float64(result.Delivered))
	c.transformedFacts.Add(float64(transformed))
	c.duration.WithLabelValues(string(strategy), phase.String()).Observe(seconds)
	c.matchSetSize.Observe(float64(result.Matched))
}
