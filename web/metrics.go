// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/geosuggest/suggest"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geosuggest"

// newRegistry exposes the shared controller counters, the number of open
// sessions and per route request counts.
func newRegistry(m *suggest.Metrics, sessions func() int) (*prometheus.Registry, *prometheus.CounterVec, *prometheus.HistogramVec) {
	registry := prometheus.NewRegistry()

	registry.MustRegister(m.Collectors()...)
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_open", Help: "Open search sessions"},
		func() float64 { return float64(sessions()) },
	))

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requests, duration)

	return registry, requests, duration
}

// requestMetrics records a request count and duration per route pattern.
func requestMetrics(requests *prometheus.CounterVec, duration *prometheus.HistogramVec) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requests.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
		duration.WithLabelValues(ctx.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
