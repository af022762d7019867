// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package routing implements the hard-gate router that deduplicates
// candidates and assigns each survivor to exactly one block.
//
// # Pipeline
//
//	candidates -> dedup by identity -> per-candidate gates -> pools + audit
//
// Deduplication groups candidates by the strongest identity they carry
// (family id, variant-of parent, product/sku id, name, position) and keeps
// the member with the highest quality score:
//
//	quality = 0.8*similarity + 0.2*category_match
//	          - 0.1 (on_page_related) + 0.02 (both prices known)
//
// Gates are applied in a fixed order. on_page_related candidates are always
// routed to related_products. A candidate that passes the dupe gates goes
// to dupes even when it also passes the competitor gates.
//
// Route is pure: it never mutates its input and has no time dependency.
// Every candidate, including deduplicated ones, appears in the audit trail.
package routing
