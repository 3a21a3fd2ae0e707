// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package metrics records how a deploystack run went, for the node
// exporter textfile collector.
package metrics

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	coreerrors "github.com/juju/deploystack/core/errors"
)

const metricsNamespace = "deploystack"

// The phases of a run.
const (
	PhaseReadiness = "readiness"
	PhaseDeploy    = "deploy"
	PhaseVerify    = "verify"
)

// Collector is a prometheus.Collector holding the metrics of one run.
type Collector struct {
	clock clock.Clock

	phaseDuration *prometheus.GaugeVec
	statusQueries *prometheus.CounterVec
	success       prometheus.Gauge
	failures      *prometheus.GaugeVec
}

// NewCollector returns a new Collector timing phases with clk.
func NewCollector(clk clock.Clock) *Collector {
	return &Collector{
		clock: clk,
		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "phase_duration_seconds",
				Help:      "The time taken by each phase of the run.",
			}, []string{"phase"},
		),
		statusQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "status_queries_total",
				Help:      "The number of environment status queries.",
			}, []string{"result"},
		),
		success: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "success",
				Help:      "1 if the stack was deployed and verified, 0 otherwise.",
			},
		),
		failures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "failure",
				Help:      "Set to 1 for the kind of error that ended the run.",
			}, []string{"kind"},
		),
	}
}

// StartPhase starts timing phase. The returned func records its duration.
func (c *Collector) StartPhase(phase string) func() {
	start := c.clock.Now()
	return func() {
		c.ObservePhase(phase, c.clock.Now().Sub(start))
	}
}

// ObservePhase records that phase took d.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	c.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// StatusQueried counts one status query, failed if err is not nil.
func (c *Collector) StatusQueried(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.statusQueries.WithLabelValues(result).Inc()
}

// RecordOutcome records how the run ended.
func (c *Collector) RecordOutcome(err error) {
	if err == nil {
		c.success.Set(1)
		return
	}
	c.success.Set(0)
	c.failures.WithLabelValues(string(coreerrors.KindOf(err))).Set(1)
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.phaseDuration.Describe(ch)
	c.statusQueries.Describe(ch)
	c.success.Describe(ch)
	c.failures.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.phaseDuration.Collect(ch)
	c.statusQueries.Collect(ch)
	c.success.Collect(ch)
	c.failures.Collect(ch)
}

// WriteTextfile writes the metrics of c to path in the Prometheus text
// format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(c); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(prometheus.WriteToTextfile(path, registry), "writing metrics to %s", path)
}
