// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package social enriches rendered recommendation cards with cross-platform
social signals after the first response has been served.

# Adapter

Adapter POSTs a sanitized anchor and candidate list to the social signal
service and maps the response back onto candidate keys. Every call passes a
token bucket (rate_limited), a concurrency gate and a circuit breaker
(circuit_open) before any network I/O. Failures never surface as errors; the
FetchResult reason names them:

	disabled, not_configured, empty_candidates, rate_limited,
	timeout, upstream_<4xx code>, upstream_error, circuit_open

# Worker

Worker.Run flattens the card's three blocks, fetches signals through an
in-flight cache keyed by the SHA-256 of the request body, merges matching
signals into each candidate, re-scores every changed block and patches the
ticket block by block. Identical concurrent runs share one fetch. Failed
fetches are never cached.

# Queue

The API publishes a Job on the reco.social.enrich topic of an in-process
watermill pub/sub after creating a ticket. Consumer runs the worker for each
job and always acks; enrichment is best effort.
*/
package social
