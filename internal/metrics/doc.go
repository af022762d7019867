// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

API Metrics:
  - api_requests_total{method, endpoint, status}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests

Scheduler Metrics:
  - recoblocks_source_calls_total{source, outcome}
    outcome: ok, timeout, error, budget_exhausted, not_configured
  - recoblocks_source_duration_seconds{source}
  - recoblocks_fallbacks_total{token}
  - recoblocks_block_candidates_total{block}
  - recoblocks_block_confidence{block}
  - recoblocks_request_duration_seconds

Router Metrics:
  - recoblocks_router_decisions_total{route}

Ticket Metrics:
  - recoblocks_tickets_created_total
  - recoblocks_ticket_patches_total{result}
  - recoblocks_tickets_active

Social Enrichment Metrics:
  - recoblocks_social_fetch_total{status}
  - recoblocks_social_enrich_runs_total{reason}

Concurrency and Cache Metrics:
  - recoblocks_gate_in_flight{gate}
  - recoblocks_rate_limited_total{bucket}
  - cache_hits_total{cache_type}, cache_misses_total{cache_type},
    cache_evictions_total{cache_type}

Circuit Breaker Metrics:
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name, result}
  - circuit_breaker_state_transitions_total{name, from_state, to_state}
*/
package metrics
