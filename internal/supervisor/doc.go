// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package supervisor provides process supervision for Recoblocks using suture v4.

# Overview

Long-running services are organized into three layers for failure isolation:

	RootSupervisor ("recoblocks")
	├── DataSupervisor ("data-layer")
	│   └── MaintenanceService (ticket/tracking pruning, Badger value-log GC)
	├── EnrichmentSupervisor ("enrichment-layer")
	│   └── EnrichmentService (social enrichment consumer)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing enrichment consumer is restarted with backoff without touching the
HTTP server, and the API keeps answering with synchronous results meanwhile.

Supervisor events (start, stop, panic, backoff) are logged through the slog
bridge in the logging package via sutureslog.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddEnrichmentService(services.NewEnrichmentService(consumer, logger))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
