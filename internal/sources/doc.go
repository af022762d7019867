// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package sources binds the named candidate sources of the recommendation
// engine to HTTP services.
//
// Each configured source gets an HTTPSource that POSTs the SourceRequest as
// JSON and decodes a SourceResult. Every source has its own circuit breaker;
// 5xx responses and transport errors count against it, 4xx responses and
// caller cancellation do not. Sources without a configured endpoint are
// never registered, so the engine reports them as source_not_configured.
//
// Usage:
//
//	reg, err := sources.NewRegistry(cfg.Sources, nil, logger)
//	if err != nil {
//	    return err
//	}
//	if err := reg.RegisterAll(engine); err != nil {
//	    return err
//	}
package sources
