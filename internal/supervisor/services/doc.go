// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package services provides suture.Service wrappers for Recoblocks components.

Each wrapper adapts a component lifecycle to suture's Serve(ctx) error
contract and implements fmt.Stringer so supervisor events name the service.

# Services

HTTPServerService wraps *http.Server. ListenAndServe runs in a goroutine and
Shutdown is called with a fresh timeout context on cancellation.

EnrichmentService wraps the social enrichment consumer. A consumer that
returns while the context is live is treated as a failure and restarted.

WebSocketHubService wraps the ticket stream hub, whose RunWithContext
already follows the suture contract.

MaintenanceService runs named housekeeping tasks on a ticker: pruning the
ticket and tracking stores and Badger value-log GC.

# Usage

	tree.AddDataService(services.NewMaintenanceService(
	    services.MaintenanceConfig{Interval: time.Minute},
	    logger,
	    services.MaintenanceTask{Name: "prune_tickets", Run: pruneTickets},
	))
	tree.AddEnrichmentService(services.NewEnrichmentService(consumer, logger))
	tree.AddEnrichmentService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second, logger))
*/
package services
