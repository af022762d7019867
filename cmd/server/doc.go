// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package main is the entry point for the Recoblocks server.

Recoblocks assembles related-product recommendation blocks for an anchor
product. Each request fans candidate sources out under a latency budget,
routes candidates into hard-gated blocks, reranks them with explanations and
optionally interleaves two rankers and reserves exploration slots. Social
signals arrive later through an async ticket that clients poll.

# Application Architecture

Processes run under a Suture v4 supervisor tree:

	RootSupervisor ("recoblocks")
	├── DataSupervisor ("data-layer")
	│   └── Maintenance (ticket/tracking pruning, Badger GC)
	├── EnrichmentSupervisor ("enrichment-layer")
	│   ├── Social enrichment consumer (Watermill gochannel)
	│   └── Ticket stream hub (gorilla/websocket)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON or console output
 3. Engine: fan-out scheduler, router, reranker and dogfood stages
 4. Sources: HTTP candidate sources behind per-source circuit breakers
 5. Stores: async tickets and tracking snapshots
 6. Social: adapter, worker, optional Badger cache and enrichment queue
 7. HTTP: chi router with CORS, rate limiting and Prometheus metrics
 8. Supervisor tree: started last, stopped on SIGINT or SIGTERM

# Configuration

See package config for the full list. The most common settings:

	HTTP_PORT=8787
	RECO_BUDGET_MS=1200
	RECO_SOURCE_CATALOG_ANN_URL=http://ann.internal/search
	SOCIAL_SOURCE_BASE_URL=https://social.internal
	RECO_DOGFOOD_MODE=false
	LOG_LEVEL=info

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT, the enrichment consumer stops taking jobs, and the
Badger cache and queue are closed before exit.
*/
package main
