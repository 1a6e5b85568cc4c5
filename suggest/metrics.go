// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package suggest

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const metricsNamespace = "geosuggest"

// Metrics counts what controllers did with the input they received. A single
// Metrics may be shared by many controllers. The counters are unregistered;
// Collectors exposes them for a Prometheus registry.
type Metrics struct {
	Searches       prometheus.Counter // Search calls
	ShortQueries   prometheus.Counter // queries cleared without a remote call
	Debounced      prometheus.Counter // scheduled searches dropped before reaching the network
	Requests       prometheus.Counter // remote calls issued
	Published      prometheus.Counter
	Failures       prometheus.Counter // transport or decode failures
	Superseded     prometheus.Counter // responses discarded because a newer search exists
	DetailFetches  prometheus.Counter
	DetailFailures prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	})
}

// NewMetrics creates a zeroed set of counters.
func NewMetrics() *Metrics {
	return &Metrics{
		Searches:       newCounter("searches_total", "Search calls received by controllers"),
		ShortQueries:   newCounter("short_queries_total", "Queries cleared without a remote call"),
		Debounced:      newCounter("debounced_total", "Searches dropped before reaching the geocoder"),
		Requests:       newCounter("geocoder_requests_total", "Remote geocoding calls issued"),
		Published:      newCounter("publications_total", "Result lists published"),
		Failures:       newCounter("failures_total", "Transport or decode failures"),
		Superseded:     newCounter("superseded_total", "Responses discarded because a newer search exists"),
		DetailFetches:  newCounter("detail_fetches_total", "Weather lookups started by a selection"),
		DetailFailures: newCounter("detail_failures_total", "Weather lookups that failed"),
	}
}

// Collectors returns every counter, ready to be registered.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Searches,
		m.ShortQueries,
		m.Debounced,
		m.Requests,
		m.Published,
		m.Failures,
		m.Superseded,
		m.DetailFetches,
		m.DetailFailures,
	}
}

// MetricsSnapshot is a point in time copy of Metrics.
type MetricsSnapshot struct {
	Searches       int64 `json:"searches"`
	ShortQueries   int64 `json:"short_queries"`
	Debounced      int64 `json:"debounced"`
	Requests       int64 `json:"requests"`
	Published      int64 `json:"published"`
	Failures       int64 `json:"failures"`
	Superseded     int64 `json:"superseded"`
	DetailFetches  int64 `json:"detail_fetches"`
	DetailFailures int64 `json:"detail_failures"`
}

func value(c prometheus.Counter) int64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}

	return int64(m.GetCounter().GetValue())
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Searches:       value(m.Searches),
		ShortQueries:   value(m.ShortQueries),
		Debounced:      value(m.Debounced),
		Requests:       value(m.Requests),
		Published:      value(m.Published),
		Failures:       value(m.Failures),
		Superseded:     value(m.Superseded),
		DetailFetches:  value(m.DetailFetches),
		DetailFailures: value(m.DetailFailures),
	}
}
