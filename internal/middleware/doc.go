// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package middleware provides HTTP middleware for the Recoblocks API.

All middleware uses the chi signature func(http.Handler) http.Handler and is
mounted by internal/api.

Key Components:

  - RequestID: reuses or generates X-Request-ID and stores it, with an
    optional X-Session-ID, in the logging context
  - PrometheusMetrics: request count, duration and in-flight gauge labelled
    by chi route pattern
  - PerformanceMonitor: sliding window of latencies with per-route
    percentiles and slow request warnings

Usage:

	perf := middleware.NewPerformanceMonitor(0, 0, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)

	stats := perf.Stats() // []RouteStats, busiest first

Route patterns are resolved after the handler ran, so a middleware mounted
with r.Use at the root still sees "/api/v1/reco/tickets/{ticketID}/updates"
instead of the raw path.
*/
package middleware
