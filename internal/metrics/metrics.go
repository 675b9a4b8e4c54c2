// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes Prometheus metrics for fix sampling and delivery.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the tracker metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	FixesReceived   *prometheus.CounterVec
	SendResults     *prometheus.CounterVec
	SendDuration    prometheus.Histogram
	ProviderEnabled *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fixes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_fixes_received_total",
		Help: "Position fixes accepted into the fix store, labeled by provider.",
	}, []string{"provider"})
	if err := register(reg, fixes, &fixes); err != nil {
		return nil, err
	}

	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_send_results_total",
		Help: "Send attempts labeled by outcome.",
	}, []string{"outcome"})
	if err := register(reg, results, &results); err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gps_send_duration_seconds",
		Help:    "Latency of send attempts that reached the network.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	if err := register(reg, duration, &duration); err != nil {
		return nil, err
	}

	enabled := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gps_provider_enabled",
		Help: "1 when the provider last reported enabled, 0 otherwise.",
	}, []string{"provider"})
	if err := register(reg, enabled, &enabled); err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		FixesReceived:   fixes,
		SendResults:     results,
		SendDuration:    duration,
		ProviderEnabled: enabled,
	}, nil
}

// register adopts an already registered collector of the same type so the
// constructor can run twice against one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, dst *T) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metric collision: existing collector has type %T", are.ExistingCollector)
			}
			*dst = existing
			return nil
		}
		return err
	}
	return nil
}

func (c *Collector) ObserveFix(provider string) {
	if c == nil {
		return
	}
	c.FixesReceived.WithLabelValues(provider).Inc()
}

func (c *Collector) ObserveSend(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.SendResults.WithLabelValues(outcome).Inc()
	if took > 0 {
		c.SendDuration.Observe(took.Seconds())
	}
}

func (c *Collector) SetProviderEnabled(provider string, enabled bool) {
	if c == nil {
		return
	}
	v := 0.0
	if enabled {
		v = 1
	}
	c.ProviderEnabled.WithLabelValues(provider).Set(v)
}

// Handler serves the registry the collector was registered against.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
