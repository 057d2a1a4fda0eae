/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP surface metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratex_api_requests_total",
		Help: "Total HTTP requests by method, endpoint and status code.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ratex_api_request_duration_seconds",
		Help:    "HTTP request latency by method, endpoint and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratex_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	WSConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratex_ws_connections_active",
		Help: "Open websocket event subscriptions.",
	})
)

// Dashboard domain metrics.
var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratex_sessions_active",
		Help: "Live dashboard sessions.",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratex_sessions_total",
		Help: "Sessions created since start.",
	})

	SelectionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratex_selection_conflicts_total",
		Help: "Drill attempts refused because a foreign point selection was active.",
	})

	CatalogRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratex_catalog_rebuilds_total",
		Help: "Catalog rebuilds triggered by filter changes.",
	})

	CatalogBuildFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratex_catalog_build_failures_total",
		Help: "Catalog rebuilds that ended in an error state.",
	})

	GenerationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratex_generation_requests_total",
		Help: "Requests proxied to the vibration generation service by outcome.",
	}, []string{"outcome"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ratex_generation_duration_seconds",
		Help:    "Latency of generation service calls.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

// Storage metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ratex_db_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratex_db_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ratex_db_connections_active",
		Help: "Open database connections.",
	})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratex_cache_hits_total",
		Help: "Cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
