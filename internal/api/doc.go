// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package api provides the HTTP REST API layer for Recoblocks.

Key Components:

  - Router: chi route configuration and middleware stack
  - Handler: request handlers backed by the engine, ticket and tracking stores
  - Response formatting: the models.APIResponse envelope with metadata
  - Rate limiting: per-IP httprate limiters with per-route buckets
  - CORS: go-chi/cors, applied globally so preflights are answered

Endpoints:

Recommendation (/api/v1/reco/):
  - POST /blocks: compute competitors, related products and dupes for an
    anchor, open an async ticket and queue social enrichment
  - GET /tickets/{ticketID}/updates?since=N: poll a ticket
  - POST /tickets/{ticketID}/patch: push a reordered block (top-N locked)
  - GET /tracking?request_id=&session_id=: tracking snapshot of a request
  - GET /social/stats: social gate, cache and queue counters

Dogfood (404 unless dogfood mode is enabled):
  - POST /interleave/click: attribute a click to ranker A, B, both or explore
  - POST /employee-feedback: record an employee relevance label

Health (/api/v1/health):
  - GET /: counters, store sizes and circuit breaker states
  - GET /live: liveness check
  - GET /latency: per-route latency percentiles

Metrics:
  - GET /metrics: Prometheus exposition

Response Format:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "query_time_ms": 12, "request_id": "..."}
	}

Errors use the same envelope with status "error" and an error object:

	{
	  "status": "error",
	  "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {...}}
	}

Usage Example:

	handler, err := api.NewHandler(api.Dependencies{
	    Engine:   engine,
	    Tickets:  ticketStore,
	    Tracking: trackingStore,
	}, logger)
	if err != nil {
	    return err
	}
	router := api.NewRouter(handler, mwConfig)
	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router.SetupChi()}
*/
package api
