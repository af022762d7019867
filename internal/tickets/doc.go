// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package tickets holds the short-lived, in-memory state behind progressive
// recommendation updates.
//
// A Store ticket is created when a card is first rendered. Enrichment
// patches blocks through ApplyPatch, which keeps the identities of the
// first lock_top_n items stable so the rendered head of a list never jumps.
// Every state-changing patch bumps the version by exactly one; clients poll
// GetUpdates with the last version they saw.
//
// A TrackingStore records how each served candidate was ranked and
// attributed, keyed by request id and session id, for later feedback
// attribution.
//
// Both stores expire entries lazily on access. Nothing is persisted across
// restarts.
package tickets
