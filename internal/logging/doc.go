// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package logging provides zerolog-based structured logging for Recoblocks.
//
// # Overview
//
// A single global zerolog logger is configured once at startup through
// Init. Components receive a zerolog.Logger by value and derive a child
// tagged with their name:
//
//	logger := logging.WithComponent("scheduler")
//	logger.Info().Int("returned", n).Msg("blocks served")
//
// Request-scoped logging reads the request and session ids stored by the
// HTTP middleware:
//
//	logging.Ctx(ctx).Warn().Str("source", name).Msg("source timed out")
//
// # Adapters
//
//   - SlogHandler / NewSlogLogger: bridges slog consumers (sutureslog) to zerolog
//   - WatermillAdapter: implements watermill.LoggerAdapter for the enrichment queue
//
// # Configuration
//
// Environment variables (read by internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
package logging
