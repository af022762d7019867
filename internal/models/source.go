// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

// MaxSourceQueries bounds the query strings a source may echo back.
const MaxSourceQueries = 8

// SourceRequest is the input handed to every candidate source.
type SourceRequest struct {
	SourceName string         `json:"source_name"`
	Anchor     Anchor         `json:"anchor"`
	Context    map[string]any `json:"context,omitempty"`
	TimeoutMS  int64          `json:"timeout_ms"`
	DeadlineMS int64          `json:"deadline_ms"`
	BudgetMS   int64          `json:"budget_ms"`
	Retry      bool           `json:"retry,omitempty"`
}

// SourceResult is the output of a single source call.
// Lists may be empty; Meta carries source-specific diagnostics.
type SourceResult struct {
	Candidates      []Candidate    `json:"candidates,omitempty"`
	Competitors     []Candidate    `json:"competitors,omitempty"`
	RelatedProducts []Candidate    `json:"related_products,omitempty"`
	Dupes           []Candidate    `json:"dupes,omitempty"`
	Queries         []string       `json:"queries,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// Eligible returns the number of candidates across all four lists.
func (r *SourceResult) Eligible() int {
	if r == nil {
		return 0
	}
	return len(r.Candidates) + len(r.Competitors) + len(r.RelatedProducts) + len(r.Dupes)
}

// Present reports whether the source returned any candidates or meta.
func (r *SourceResult) Present() bool {
	if r == nil {
		return false
	}
	return len(r.Candidates) > 0 || len(r.Meta) > 0
}

// SourceExecutionRecord tracks one source over the lifetime of a request.
type SourceExecutionRecord struct {
	Eligible   int    `json:"eligible"`
	Returned   int    `json:"returned"`
	DurationMS int64  `json:"duration_ms"`
	Timeout    bool   `json:"timeout"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts"`
}

// Attribution values recorded for each served candidate.
const (
	AttributionA       = "A"
	AttributionB       = "B"
	AttributionBoth    = "both"
	AttributionExplore = "explore"
)

// IsValidAttribution reports whether a is a recognized attribution.
func IsValidAttribution(a string) bool {
	switch a {
	case AttributionA, AttributionB, AttributionBoth, AttributionExplore:
		return true
	default:
		return false
	}
}

// TrackingEntry records how a candidate was served.
type TrackingEntry struct {
	RankPosition       int    `json:"rank_position"`
	Attribution        string `json:"attribution"`
	WasExplorationSlot bool   `json:"was_exploration_slot"`
}

// BlockTracking maps candidate identity to its tracking entry.
type BlockTracking map[string]TrackingEntry

// TrackingByBlock maps block name to its tracking entries.
type TrackingByBlock map[string]BlockTracking
