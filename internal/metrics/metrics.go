// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sourceLatencyBuckets covers the per-source timeout range (40ms to 8s).
var sourceLatencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.35, 0.5, 0.75, 1, 2, 4, 8}

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Scheduler Metrics
	SourceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_source_calls_total",
			Help: "Total number of candidate source dispatches",
		},
		[]string{"source", "outcome"}, // outcome: ok, timeout, error, budget_exhausted, not_configured
	)

	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoblocks_source_duration_seconds",
			Help:    "Observed duration of candidate source calls",
			Buckets: sourceLatencyBuckets,
		},
		[]string{"source"},
	)

	FallbacksUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_fallbacks_total",
			Help: "Total number of fallback strategies applied",
		},
		[]string{"token"},
	)

	BlocksServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_block_candidates_total",
			Help: "Total number of candidates returned per block",
		},
		[]string{"block"},
	)

	BlockConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoblocks_block_confidence",
			Help:    "Confidence score per block",
			Buckets: []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		},
		[]string{"block"},
	)

	RecoDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recoblocks_request_duration_seconds",
			Help:    "End-to-end duration of a blocks request",
			Buckets: sourceLatencyBuckets,
		},
	)

	// Router Metrics
	RouterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_router_decisions_total",
			Help: "Total number of hard-gate routing decisions",
		},
		[]string{"route"}, // competitors, related_products, dupes, rejected
	)

	// Ticket Metrics
	TicketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoblocks_tickets_created_total",
			Help: "Total number of async update tickets created",
		},
	)

	TicketPatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_ticket_patches_total",
			Help: "Total number of ticket patch attempts",
		},
		[]string{"result"}, // applied, no_change, ticket_missing, invalid_block
	)

	TicketsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoblocks_tickets_active",
			Help: "Current number of unexpired tickets",
		},
	)

	TicketStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoblocks_ticket_stream_clients",
			Help: "Current number of websocket clients following a ticket",
		},
	)

	TicketStreamDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoblocks_ticket_stream_dropped_total",
			Help: "Total number of ticket update notifications dropped on a full buffer",
		},
	)

	// Social Enrichment Metrics
	SocialFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_social_fetch_total",
			Help: "Total number of social signal fetches by outcome",
		},
		[]string{"status"},
	)

	SocialEnrichRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_social_enrich_runs_total",
			Help: "Total number of enrichment worker runs",
		},
		[]string{"reason"},
	)

	// Dogfood Metrics
	InterleaveClicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_interleave_clicks_total",
			Help: "Total number of clicks attributed to an interleaved ranker",
		},
		[]string{"block", "attribution"}, // attribution: A, B, both, explore, unknown
	)

	EmployeeFeedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_employee_feedback_total",
			Help: "Total number of employee relevance judgements",
		},
		[]string{"block", "feedback_type"},
	)

	// Concurrency Metrics
	GateInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recoblocks_gate_in_flight",
			Help: "Current number of holders of a concurrency gate",
		},
		[]string{"gate"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoblocks_rate_limited_total",
			Help: "Total number of calls refused by a token bucket",
		},
		[]string{"bucket"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "social_inflight", "social_store"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSourceCall records the outcome and duration of one source dispatch.
func RecordSourceCall(source, outcome string, duration time.Duration) {
	SourceCalls.WithLabelValues(source, outcome).Inc()
	if duration > 0 {
		SourceLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// RecordFallback records a fallback token being applied.
func RecordFallback(token string) {
	FallbacksUsed.WithLabelValues(token).Inc()
}

// RecordBlock records the served size and confidence of one block.
func RecordBlock(block string, returned int, confidence float64) {
	BlocksServed.WithLabelValues(block).Add(float64(returned))
	BlockConfidence.WithLabelValues(block).Observe(confidence)
}

// RecordRouterDecision records one candidate routing outcome.
func RecordRouterDecision(route string) {
	RouterDecisions.WithLabelValues(route).Inc()
}

// RecordTicketPatch records the result of a ticket patch.
func RecordTicketPatch(result string) {
	TicketPatches.WithLabelValues(result).Inc()
}

// RecordSocialFetch records a social fetch status (ok, timeout, rate_limited, ...).
func RecordSocialFetch(status string) {
	SocialFetches.WithLabelValues(status).Inc()
}

// RecordCacheLookup records a hit or miss for cacheType.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordInterleaveClick records a click and the ranker it is attributed to.
func RecordInterleaveClick(block, attribution string) {
	InterleaveClicks.WithLabelValues(block, attribution).Inc()
}

// RecordEmployeeFeedback records one employee relevance judgement.
func RecordEmployeeFeedback(block, feedbackType string) {
	EmployeeFeedback.WithLabelValues(block, feedbackType).Inc()
}
