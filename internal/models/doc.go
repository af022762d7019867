// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package models defines the data structures shared by the recommendation
pipeline, the ticket store, the social enrichment worker and the HTTP API.

Key Components:

  - Candidate: a recommendation candidate with identity, attributes,
    score breakdown, evidence and user-visible explanation
  - Anchor: the product recommendations are computed for
  - SourceRequest / SourceResult: the contract between the scheduler and
    each candidate source
  - SourceExecutionRecord: per-source execution statistics for one request
  - TrackingEntry: rank, attribution and exploration flag per served item
  - APIResponse / APIError: the standard HTTP response envelope

Candidates carry two internal fields (ReasonCodes, SocialRaw) that are
never serialized. Everything else maps directly to the JSON payload sent
to clients.

Identity:

CandidateKey derives the lowercased identity used by tickets, tracking and
interleaving (product id, sku id, url, name, then "idx:<position>"). The
router uses its own, stricter dedup key that also considers family and
variant ids.
*/
package models
