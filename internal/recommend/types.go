// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"context"
	"strings"

	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/routing"
)

// Candidate source names, in dispatch order.
const (
	SourceCatalogANN      = "catalog_ann"
	SourceIngredientIndex = "ingredient_index"
	SourceSkinFitLight    = "skin_fit_light"
	SourceKBBackfill      = "kb_backfill"
	SourceDupePipeline    = "dupe_pipeline"
	SourceOnPageRelated   = "on_page_related"
)

// SourceNames lists every source the scheduler knows about.
var SourceNames = []string{
	SourceCatalogANN,
	SourceIngredientIndex,
	SourceSkinFitLight,
	SourceKBBackfill,
	SourceDupePipeline,
	SourceOnPageRelated,
}

// primarySources are dispatched concurrently at the start of every request.
var primarySources = []string{
	SourceCatalogANN,
	SourceIngredientIndex,
	SourceSkinFitLight,
	SourceKBBackfill,
	SourceDupePipeline,
}

// DefaultSourceType returns the source type stamped on candidates that do
// not declare one.
func DefaultSourceType(sourceName string) string {
	if sourceName == SourceCatalogANN {
		return models.SourceTypeCatalogSearch
	}
	return sourceName
}

// IsKnownSource reports whether name is one of SourceNames.
func IsKnownSource(name string) bool {
	for _, s := range SourceNames {
		if s == name {
			return true
		}
	}
	return false
}

// ModeMainPath is the default request mode.
const ModeMainPath = "main_path"

// On-page related modes.
const (
	OnPageFallbackOnly = "fallback_only"
	OnPageDisabled     = "disabled"
	OnPageAlways       = "always"
)

// NormalizeOnPageMode maps unknown or empty values to OnPageFallbackOnly.
func NormalizeOnPageMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case OnPageDisabled, OnPageAlways:
		return m
	default:
		return OnPageFallbackOnly
	}
}

// Fallback tokens recorded when a recovery strategy is attempted.
const (
	FallbackKBCompetitors = "kb_or_cache_competitors"
	FallbackFastANN       = "fast_ann_competitors"
	FallbackRelatedOnPage = "related_on_page_fallback"
	FallbackKBDupes       = "kb_backfill_dupes"
)

// Source execution errors recorded in block stats.
const (
	SourceErrNotConfigured   = "source_not_configured"
	SourceErrBudgetExhausted = "budget_exhausted"
	SourceErrTimeout         = "timeout"
	SourceErrFailed          = "source_failed"

	maxSourceErrorLen = 160
)

// Confidence levels.
const (
	ConfidenceHigh = "high"
	ConfidenceMed  = "med"
	ConfidenceLow  = "low"
)

// Source produces candidates for one named source. Implementations should
// honour ctx cancellation; a source that does not is abandoned at its
// deadline and its result discarded.
type Source interface {
	Fetch(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error)

// Fetch calls f.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (f SourceFunc) Fetch(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
	return f(ctx, req)
}

// Reranker scores and reorders the candidates of one block.
type Reranker interface {
	// Name returns the reranker identifier (e.g., "score_explain").
	Name() string

	// Rerank returns the items of block in their new order. The input slice
	// must not be modified. lang selects the locale of user-visible text.
	Rerank(ctx context.Context, block string, anchor *models.Anchor, items []models.Candidate, lang string) []models.Candidate
}

// TrackingSink receives the per-block tracking snapshot of a served
// response. It is only called when both request and session ids are set.
type TrackingSink interface {
	Put(requestID, sessionID, anchorProductID string, byBlock models.TrackingByBlock)
}

// Request describes one RecoBlocks call.
type Request struct {
	// Anchor is the product recommendations are computed for.
	Anchor models.Anchor `json:"anchor"`

	// Context is passed through to every source untouched.
	Context map[string]any `json:"context,omitempty"`

	// BudgetMS is the overall time budget. Zero means the configured default.
	BudgetMS int64 `json:"budget_ms,omitempty"`

	// RequestID and SessionID key tracking snapshots and seed interleaving.
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Mode is echoed in diagnostics. Default: main_path.
	Mode string `json:"mode,omitempty"`

	// Lang selects the locale of explanations (EN or CN).
	Lang string `json:"lang,omitempty"`

	// OnPageMode controls the on_page_related source. Empty uses the
	// configured default.
	OnPageMode string `json:"on_page_mode,omitempty"`

	// MaxCandidates overrides the configured per-block cap when in [1, 10].
	MaxCandidates int `json:"max_candidates,omitempty"`

	// RankerA and RankerB override the configured interleave rankers.
	RankerA string `json:"ranker_a,omitempty"`
	RankerB string `json:"ranker_b,omitempty"`

	// Router overrides the configured hard-gate settings when set.
	Router *routing.Config `json:"router,omitempty"`
}

// Confidence is the per-block confidence summary.
type Confidence struct {
	Score   float64  `json:"score"`
	Level   string   `json:"level"`
	Reasons []string `json:"reasons"`
}

// Diagnostics describes how the scheduler spent its budget.
type Diagnostics struct {
	Mode               string                                   `json:"mode"`
	OnPageMode         string                                   `json:"on_page_mode"`
	BudgetMS           int64                                    `json:"budget_ms"`
	Blocks             map[string]*models.SourceExecutionRecord `json:"blocks"`
	TimedOutBlocks     []string                                 `json:"timed_out_blocks"`
	FallbacksUsed      []string                                 `json:"fallbacks_used"`
	InterleaveEnabled  bool                                     `json:"interleave_enabled"`
	ExplorationEnabled bool                                     `json:"exploration_enabled"`
	LatencyMS          int64                                    `json:"latency_ms"`
}

// Result is the outcome of a RecoBlocks call. Every block is always
// present, possibly empty.
type Result struct {
	Competitors     []models.Candidate     `json:"competitors"`
	RelatedProducts []models.Candidate     `json:"related_products"`
	Dupes           []models.Candidate     `json:"dupes"`
	Diagnostics     Diagnostics            `json:"diagnostics"`
	Provenance      models.Provenance      `json:"provenance"`
	Confidence      map[string]Confidence  `json:"confidence"`
	Tracking        models.TrackingByBlock `json:"tracking"`
	Audit           []routing.AuditEntry   `json:"-"`
	CatalogQueries  []string               `json:"catalog_queries"`
}

// Block returns the candidates of the named block.
func (r *Result) Block(name string) []models.Candidate {
	switch name {
	case models.BlockCompetitors:
		return r.Competitors
	case models.BlockRelated:
		return r.RelatedProducts
	case models.BlockDupes:
		return r.Dupes
	default:
		return nil
	}
}

// SetBlock replaces the candidates of the named block.
func (r *Result) SetBlock(name string, items []models.Candidate) {
	switch name {
	case models.BlockCompetitors:
		r.Competitors = items
	case models.BlockRelated:
		r.RelatedProducts = items
	case models.BlockDupes:
		r.Dupes = items
	}
}
