// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package experiment implements the online experimentation steps applied to
// a scored block: team-draft interleaving of two rankers and bounded
// exploration slots.
//
// Both functions are pure. They never mutate their inputs and return the
// same output for the same input, so a response can be reproduced from its
// request and session ids.
//
// # Team-Draft Interleaving
//
//	out := experiment.TeamDraftInterleave(rankedByA, rankedByB, 4, "req-1:sess-9:competitors")
//	for _, c := range out.Items {
//	    team := out.Attribution[models.CandidateKey(&c, 0)] // "A", "B" or "both"
//	}
//
// # Exploration
//
// SelectExploration appends up to five uncertain candidates from the wider
// gated pool to the tail of a ranked list. Existing ranks never move.
package experiment
