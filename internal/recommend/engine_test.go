// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/models"
)

func fp(v float64) *float64 { return &v }

func testAnchor() models.Anchor {
	return models.Anchor{
		ProductID: "anchor-1",
		Name:      "Anchor Serum",
		Brand:     "AnchorCo",
		Category:  "skincare > serum",
		Price:     fp(40),
	}
}

// competitor passes the competitor gates: cross-brand, same category,
// similarity below the dupe threshold and pricier than the anchor.
func competitor(id string, sim float64) models.Candidate {
	return models.Candidate{
		ProductID:  id,
		Name:       id,
		Brand:      "RivalCo",
		Category:   "skincare > serum",
		Similarity: fp(sim),
		Price:      fp(60),
	}
}

// dupe passes the dupe gates: cross-brand, high similarity, cheaper.
func dupe(id string) models.Candidate {
	return models.Candidate{
		ProductID:  id,
		Name:       id,
		Brand:      "BudgetCo",
		Category:   "skincare > serum",
		Similarity: fp(0.9),
		Price:      fp(20),
	}
}

func related(id string) models.Candidate {
	return models.Candidate{ProductID: id, Name: id, Brand: "AnchorCo"}
}

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func register(t *testing.T, e *Engine, sources map[string]Source) {
	t.Helper()
	for name, src := range sources {
		if err := e.RegisterSource(name, src); err != nil {
			t.Fatalf("RegisterSource(%s): %v", name, err)
		}
	}
}

func static(res *models.SourceResult) Source {
	return SourceFunc(func(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
		return res, nil
	})
}

func failing(msg string) Source {
	return SourceFunc(func(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
		return nil, errors.New(msg)
	})
}

// recordingSource blocks until its context is done when block is set and
// records the timeout of every call.
type recordingSource struct {
	mu       sync.Mutex
	block    bool
	res      *models.SourceResult
	timeouts []int64
}

func (s *recordingSource) Fetch(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
	s.mu.Lock()
	s.timeouts = append(s.timeouts, req.TimeoutMS)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.res, nil
}

func (s *recordingSource) calls() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.timeouts...)
}

type sinkCall struct {
	requestID, sessionID, anchorID string
	byBlock                        models.TrackingByBlock
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *fakeSink) Put(requestID, sessionID, anchorProductID string, byBlock models.TrackingByBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{requestID, sessionID, anchorProductID, byBlock})
}

// reverseReranker reverses every block and records the blocks it saw.
type reverseReranker struct {
	mu     sync.Mutex
	blocks []string
}

func (r *reverseReranker) Name() string { return "reverse" }

func (r *reverseReranker) Rerank(ctx context.Context, block string, anchor *models.Anchor, items []models.Candidate, lang string) []models.Candidate {
	r.mu.Lock()
	r.blocks = append(r.blocks, block)
	r.mu.Unlock()
	out := make([]models.Candidate, len(items))
	for i := range items {
		out[len(items)-1-i] = items[i]
	}
	return out
}

func productIDs(items []models.Candidate) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ProductID
	}
	return out
}

func hasString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	t.Run("nil config uses defaults", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, nil)
		if e.Config().BudgetMS != DefaultBudgetMS {
			t.Errorf("expected budget %d, got %d", DefaultBudgetMS, e.Config().BudgetMS)
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.MaxCandidates = 0
		if _, err := NewEngine(cfg, zerolog.Nop()); err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("unknown source name", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, nil)
		err := e.RegisterSource("bogus", static(nil))
		if !errors.Is(err, ErrUnknownSource) {
			t.Errorf("expected ErrUnknownSource, got %v", err)
		}
	})
}

func TestRecoBlocks_HappyPath(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	register(t, e, map[string]Source{
		SourceCatalogANN: static(&models.SourceResult{
			Candidates: []models.Candidate{competitor("c2", 0.7), competitor("c1", 0.8), competitor("c3", 0.6)},
			Queries:    []string{"serum", "serum", "niacinamide serum"},
		}),
		SourceKBBackfill:    static(&models.SourceResult{}),
		SourceDupePipeline:  static(&models.SourceResult{Candidates: []models.Candidate{dupe("d1")}}),
		SourceOnPageRelated: static(&models.SourceResult{RelatedProducts: []models.Candidate{related("r1")}}),
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	if got := productIDs(res.Competitors); strings.Join(got, ",") != "c1,c2,c3" {
		t.Errorf("expected competitors c1,c2,c3, got %v", got)
	}
	if got := productIDs(res.Dupes); strings.Join(got, ",") != "d1" {
		t.Errorf("expected dupes d1, got %v", got)
	}
	if got := productIDs(res.RelatedProducts); strings.Join(got, ",") != "r1" {
		t.Errorf("expected related r1, got %v", got)
	}

	if len(res.Diagnostics.FallbacksUsed) != 1 || res.Diagnostics.FallbacksUsed[0] != FallbackRelatedOnPage {
		t.Errorf("expected only %s fallback, got %v", FallbackRelatedOnPage, res.Diagnostics.FallbacksUsed)
	}
	if len(res.Diagnostics.TimedOutBlocks) != 0 {
		t.Errorf("expected no timed out blocks, got %v", res.Diagnostics.TimedOutBlocks)
	}

	stats := res.Diagnostics.Blocks
	if stats[SourceCatalogANN].Returned != 3 || stats[SourceCatalogANN].Eligible != 3 {
		t.Errorf("expected catalog eligible/returned 3/3, got %d/%d", stats[SourceCatalogANN].Eligible, stats[SourceCatalogANN].Returned)
	}
	if stats[SourceDupePipeline].Returned != 1 {
		t.Errorf("expected dupe_pipeline returned 1, got %d", stats[SourceDupePipeline].Returned)
	}
	if stats[SourceOnPageRelated].Returned != 1 {
		t.Errorf("expected on_page_related returned 1, got %d", stats[SourceOnPageRelated].Returned)
	}
	if stats[SourceIngredientIndex].Error != SourceErrNotConfigured {
		t.Errorf("expected %s, got %q", SourceErrNotConfigured, stats[SourceIngredientIndex].Error)
	}
	if stats[SourceIngredientIndex].Attempts != 0 {
		t.Errorf("expected unconfigured source never attempted, got %d", stats[SourceIngredientIndex].Attempts)
	}

	comp := res.Confidence[models.BlockCompetitors]
	if math.Abs(comp.Score-0.63) > 1e-9 || comp.Level != ConfidenceMed {
		t.Errorf("expected competitors confidence 0.63/med, got %v/%s", comp.Score, comp.Level)
	}
	if !hasString(comp.Reasons, "competitor_recall_available") || !hasString(comp.Reasons, "fallback_related_on_page_fallback") {
		t.Errorf("unexpected competitor reasons %v", comp.Reasons)
	}

	if res.Provenance.Pipeline != models.PipelineRecoBlocks || res.Provenance.ValidationMode != models.ValidationSoftFail {
		t.Errorf("unexpected provenance %s/%s", res.Provenance.Pipeline, res.Provenance.ValidationMode)
	}
	if res.Provenance.Mode != ModeMainPath || res.Provenance.OnPageMode != OnPageFallbackOnly {
		t.Errorf("expected default modes, got %s/%s", res.Provenance.Mode, res.Provenance.OnPageMode)
	}
	if len(res.Provenance.BlockStats) != len(SourceNames) {
		t.Errorf("expected stats for %d sources, got %d", len(SourceNames), len(res.Provenance.BlockStats))
	}

	if strings.Join(res.CatalogQueries, "|") != "serum|niacinamide serum" {
		t.Errorf("expected deduplicated queries, got %v", res.CatalogQueries)
	}

	entry := res.Tracking[models.BlockCompetitors]["c1"]
	if entry.RankPosition != 1 || entry.Attribution != models.AttributionBoth || entry.WasExplorationSlot {
		t.Errorf("unexpected tracking entry %+v", entry)
	}
}

func TestRecoBlocks_CatalogTimeout(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Timeouts.CatalogANN = 40

	catalog := &recordingSource{block: true}
	e := newTestEngine(t, cfg)
	register(t, e, map[string]Source{
		SourceCatalogANN: catalog,
		SourceKBBackfill: static(&models.SourceResult{Competitors: []models.Candidate{competitor("kb1", 0.7)}}),
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	if got := catalog.calls(); len(got) != 2 || got[0] != 40 || got[1] != 140 {
		t.Errorf("expected catalog timeouts [40 140], got %v", got)
	}

	stat := res.Diagnostics.Blocks[SourceCatalogANN]
	if !stat.Timeout || stat.Error != SourceErrTimeout || stat.Attempts != 2 {
		t.Errorf("expected timed out catalog with 2 attempts, got %+v", stat)
	}
	if len(res.Diagnostics.TimedOutBlocks) != 1 || res.Diagnostics.TimedOutBlocks[0] != SourceCatalogANN {
		t.Errorf("expected [catalog_ann] timed out, got %v", res.Diagnostics.TimedOutBlocks)
	}
	if hasString(res.Diagnostics.FallbacksUsed, FallbackKBCompetitors) {
		t.Errorf("expected kb retry skipped, got %v", res.Diagnostics.FallbacksUsed)
	}
	if !hasString(res.Diagnostics.FallbacksUsed, FallbackFastANN) {
		t.Errorf("expected %s, got %v", FallbackFastANN, res.Diagnostics.FallbacksUsed)
	}

	if got := productIDs(res.Competitors); len(got) != 1 || got[0] != "kb1" {
		t.Errorf("expected kb competitor served, got %v", got)
	}

	// 0.66 - 1 timeout (0.05) - 3 fallbacks (0.09)
	comp := res.Confidence[models.BlockCompetitors]
	if math.Abs(comp.Score-0.52) > 1e-9 {
		t.Errorf("expected competitors confidence 0.52, got %v", comp.Score)
	}
	if !hasString(comp.Reasons, "catalog_ann_timeout") {
		t.Errorf("expected catalog_ann_timeout reason, got %v", comp.Reasons)
	}
}

func TestRecoBlocks_RetryGraceOnlyAfterTimeout(t *testing.T) {
	t.Parallel()

	catalog := &recordingSource{res: &models.SourceResult{}}
	kb := &recordingSource{res: &models.SourceResult{}}
	e := newTestEngine(t, nil)
	register(t, e, map[string]Source{
		SourceCatalogANN: catalog,
		SourceKBBackfill: kb,
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	if got := kb.calls(); len(got) != 2 || got[0] != 220 || got[1] != 220 {
		t.Errorf("expected kb timeouts [220 220], got %v", got)
	}
	if got := catalog.calls(); len(got) != 2 || got[0] != 450 || got[1] != 450 {
		t.Errorf("expected catalog timeouts [450 450], got %v", got)
	}
	if !hasString(res.Diagnostics.FallbacksUsed, FallbackKBCompetitors) || !hasString(res.Diagnostics.FallbacksUsed, FallbackFastANN) {
		t.Errorf("expected both competitor fallbacks, got %v", res.Diagnostics.FallbacksUsed)
	}
}

func TestRecoBlocks_AllCompetitorRecallFailed(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	sources := make(map[string]Source)
	for _, name := range primarySources {
		sources[name] = failing("boom")
	}
	register(t, e, sources)

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	if len(res.Competitors) != 0 || len(res.RelatedProducts) != 0 || len(res.Dupes) != 0 {
		t.Errorf("expected empty blocks, got %d/%d/%d", len(res.Competitors), len(res.RelatedProducts), len(res.Dupes))
	}

	comp := res.Confidence[models.BlockCompetitors]
	if comp.Score > 0.2 || comp.Level != ConfidenceLow {
		t.Errorf("expected low competitors confidence <= 0.2, got %v/%s", comp.Score, comp.Level)
	}
	for _, reason := range []string{
		"all_competitor_recall_failed",
		"fallback_" + FallbackKBCompetitors,
		"fallback_" + FallbackFastANN,
	} {
		if !hasString(comp.Reasons, reason) {
			t.Errorf("expected reason %s, got %v", reason, comp.Reasons)
		}
	}

	if res.Confidence[models.BlockRelated].Reasons[0] != "related_candidates_sparse" {
		t.Errorf("expected sparse related, got %v", res.Confidence[models.BlockRelated].Reasons)
	}
	if res.Confidence[models.BlockDupes].Score != 0.35 {
		t.Errorf("expected dupes confidence 0.35, got %v", res.Confidence[models.BlockDupes].Score)
	}

	kb := res.Diagnostics.Blocks[SourceKBBackfill]
	if kb.Attempts != 2 || kb.Error != "boom" || kb.Timeout {
		t.Errorf("expected kb failed twice without timeout, got %+v", kb)
	}
	if len(res.Diagnostics.FallbacksUsed) != 4 {
		t.Errorf("expected 4 fallbacks, got %v", res.Diagnostics.FallbacksUsed)
	}
}

func TestRecoBlocks_KBDupesFallback(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	register(t, e, map[string]Source{
		SourceCatalogANN:   static(&models.SourceResult{Candidates: []models.Candidate{competitor("c1", 0.7)}}),
		SourceKBBackfill:   static(&models.SourceResult{Dupes: []models.Candidate{dupe("kb-dupe")}}),
		SourceDupePipeline: static(&models.SourceResult{}),
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	if got := productIDs(res.Dupes); len(got) != 1 || got[0] != "kb-dupe" {
		t.Errorf("expected kb dupe served, got %v", got)
	}
	if !hasString(res.Diagnostics.FallbacksUsed, FallbackKBDupes) {
		t.Errorf("expected %s, got %v", FallbackKBDupes, res.Diagnostics.FallbacksUsed)
	}
	if got := res.Diagnostics.Blocks[SourceKBBackfill].Returned; got != 1 {
		t.Errorf("expected kb_backfill returned 1, got %d", got)
	}
	if res.Dupes[0].SourceType() != models.SourceTypeKBBackfill {
		t.Errorf("expected kb_backfill source type, got %s", res.Dupes[0].SourceType())
	}
}

func TestRecoBlocks_BudgetExhausted(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	register(t, e, map[string]Source{
		SourceCatalogANN:    &recordingSource{block: true},
		SourceOnPageRelated: static(&models.SourceResult{RelatedProducts: []models.Candidate{related("r1")}}),
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor(), BudgetMS: 120})

	if res.Diagnostics.BudgetMS != 120 {
		t.Errorf("expected budget 120, got %d", res.Diagnostics.BudgetMS)
	}

	onPage := res.Diagnostics.Blocks[SourceOnPageRelated]
	if !onPage.Timeout || onPage.Error != SourceErrBudgetExhausted || onPage.Attempts != 0 {
		t.Errorf("expected on_page budget exhausted without attempt, got %+v", onPage)
	}
	if !hasString(res.Diagnostics.TimedOutBlocks, SourceOnPageRelated) || !hasString(res.Diagnostics.TimedOutBlocks, SourceCatalogANN) {
		t.Errorf("expected catalog and on_page timed out, got %v", res.Diagnostics.TimedOutBlocks)
	}
	if len(res.RelatedProducts) != 0 {
		t.Errorf("expected no related products, got %v", productIDs(res.RelatedProducts))
	}

	catalog := res.Diagnostics.Blocks[SourceCatalogANN]
	if catalog.Attempts != 1 || catalog.Error != SourceErrTimeout {
		t.Errorf("expected catalog retry skipped by budget, got %+v", catalog)
	}
}

func TestRecoBlocks_BudgetClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		budget int64
		want   int64
	}{
		{"default", 0, DefaultBudgetMS},
		{"below minimum", 10, MinBudgetMS},
		{"above maximum", 60000, MaxBudgetMS},
		{"in range", 800, 800},
	}

	e := newTestEngine(t, nil)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor(), BudgetMS: tt.budget})
			if res.Diagnostics.BudgetMS != tt.want {
				t.Errorf("expected budget %d, got %d", tt.want, res.Diagnostics.BudgetMS)
			}
		})
	}
}

func TestRecoBlocks_SourceFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   Source
		check func(t *testing.T, stat *models.SourceExecutionRecord)
	}{
		{
			name: "long error truncated",
			src:  failing(strings.Repeat("x", 300)),
			check: func(t *testing.T, stat *models.SourceExecutionRecord) {
				if len(stat.Error) != 160 {
					t.Errorf("expected 160 char error, got %d", len(stat.Error))
				}
			},
		},
		{
			name: "panic recovered",
			src: SourceFunc(func(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
				panic("index out of range")
			}),
			check: func(t *testing.T, stat *models.SourceExecutionRecord) {
				if !strings.Contains(stat.Error, "source panic") {
					t.Errorf("expected panic error, got %q", stat.Error)
				}
			},
		},
		{
			name: "source ignoring context is abandoned",
			src: SourceFunc(func(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
				time.Sleep(300 * time.Millisecond)
				return &models.SourceResult{Candidates: []models.Candidate{competitor("late", 0.7)}}, nil
			}),
			check: func(t *testing.T, stat *models.SourceExecutionRecord) {
				if !stat.Timeout || stat.Eligible != 0 {
					t.Errorf("expected timeout with no eligible candidates, got %+v", stat)
				}
			},
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.Timeouts.IngredientIndex = 40
			e := newTestEngine(t, cfg)
			register(t, e, map[string]Source{SourceIngredientIndex: tt.src})

			start := time.Now()
			res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})
			if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
				t.Errorf("expected fast completion, took %v", elapsed)
			}
			tt.check(t, res.Diagnostics.Blocks[SourceIngredientIndex])
		})
	}
}

func TestRecoBlocks_PrimarySourcesRunConcurrently(t *testing.T) {
	t.Parallel()

	slow := SourceFunc(func(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
		select {
		case <-time.After(60 * time.Millisecond):
			return &models.SourceResult{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	e := newTestEngine(t, nil)
	register(t, e, map[string]Source{
		SourceCatalogANN:      static(&models.SourceResult{Candidates: []models.Candidate{competitor("c1", 0.7)}}),
		SourceIngredientIndex: slow,
		SourceSkinFitLight:    slow,
		SourceDupePipeline:    slow,
	})

	start := time.Now()
	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})
	if elapsed := time.Since(start); elapsed > 170*time.Millisecond {
		t.Errorf("expected concurrent dispatch, took %v", elapsed)
	}
	if len(res.Competitors) != 1 {
		t.Errorf("expected 1 competitor, got %d", len(res.Competitors))
	}
}

func TestRecoBlocks_OnPageModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		mode         string
		wantAttempts int
		wantRelated  int
		wantToken    bool
	}{
		{"fallback only", OnPageFallbackOnly, 1, 1, true},
		{"always", OnPageAlways, 1, 1, false},
		{"disabled", OnPageDisabled, 0, 0, false},
		{"unknown falls back", "sometimes", 1, 1, true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, nil)
			register(t, e, map[string]Source{
				SourceCatalogANN:    static(&models.SourceResult{Candidates: []models.Candidate{competitor("c1", 0.7)}}),
				SourceOnPageRelated: static(&models.SourceResult{RelatedProducts: []models.Candidate{related("r1")}}),
			})

			res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor(), OnPageMode: tt.mode})

			if got := res.Diagnostics.Blocks[SourceOnPageRelated].Attempts; got != tt.wantAttempts {
				t.Errorf("expected %d on_page attempts, got %d", tt.wantAttempts, got)
			}
			if len(res.RelatedProducts) != tt.wantRelated {
				t.Errorf("expected %d related, got %d", tt.wantRelated, len(res.RelatedProducts))
			}
			if got := hasString(res.Diagnostics.FallbacksUsed, FallbackRelatedOnPage); got != tt.wantToken {
				t.Errorf("expected related fallback token %v, got %v", tt.wantToken, got)
			}
		})
	}
}

func TestRecoBlocks_OnPageNeverCompetesOrDupes(t *testing.T) {
	t.Parallel()

	onPageDupe := dupe("op-dupe")
	onPageDupe.Source.Type = models.SourceTypeOnPageRelated

	e := newTestEngine(t, nil)
	register(t, e, map[string]Source{
		SourceCatalogANN: static(&models.SourceResult{Candidates: []models.Candidate{competitor("c1", 0.7), onPageDupe}}),
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	for _, block := range []string{models.BlockCompetitors, models.BlockDupes} {
		for _, c := range res.Block(block) {
			if c.SourceType() == models.SourceTypeOnPageRelated {
				t.Errorf("expected no on_page_related candidate in %s, got %s", block, c.ProductID)
			}
		}
	}
	if got := productIDs(res.RelatedProducts); len(got) != 1 || got[0] != "op-dupe" {
		t.Errorf("expected on-page candidate routed to related, got %v", got)
	}
}

func TestRecoBlocks_MaxCandidates(t *testing.T) {
	t.Parallel()

	many := make([]models.Candidate, 0, 12)
	for i := 0; i < 12; i++ {
		many = append(many, competitor("c"+string(rune('a'+i)), 0.5+float64(i)/100))
	}

	tests := []struct {
		name string
		max  int
		want int
	}{
		{"default", 0, DefaultMaxCandidates},
		{"explicit", 6, 6},
		{"clamped high", 50, MaxMaxCandidates},
		{"clamped low", -3, MinMaxCandidates},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, nil)
			register(t, e, map[string]Source{SourceCatalogANN: static(&models.SourceResult{Candidates: many})})

			res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor(), MaxCandidates: tt.max})
			if len(res.Competitors) != tt.want {
				t.Errorf("expected %d competitors, got %d", tt.want, len(res.Competitors))
			}
		})
	}
}

func TestRecoBlocks_RerankersApplied(t *testing.T) {
	t.Parallel()

	rr := &reverseReranker{}
	e := newTestEngine(t, nil)
	e.RegisterReranker(rr)
	register(t, e, map[string]Source{
		SourceCatalogANN: static(&models.SourceResult{Candidates: []models.Candidate{competitor("c1", 0.8), competitor("c2", 0.7)}}),
	})

	res := e.RecoBlocks(context.Background(), Request{Anchor: testAnchor()})

	if got := productIDs(res.Competitors); strings.Join(got, ",") != "c2,c1" {
		t.Errorf("expected reranked order c2,c1, got %v", got)
	}
	if len(rr.blocks) != len(models.Blocks) {
		t.Errorf("expected reranker called for every block, got %v", rr.blocks)
	}
}

func TestRecoBlocks_Dogfood(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Dogfood.Enabled = true

	pool := make([]models.Candidate, 0, 8)
	for i := 0; i < 8; i++ {
		c := competitor("c"+string(rune('a'+i)), 0.55+float64(i)/100)
		c.RankerScores = map[string]float64{
			"ranker_v1": float64(i),
			"ranker_v2": float64(8 - i),
		}
		pool = append(pool, c)
	}
	onPage := competitor("op", 0.6)
	onPage.Source.Type = models.SourceTypeOnPageRelated
	pool = append(pool, onPage)

	sink := &fakeSink{}
	e := newTestEngine(t, cfg)
	e.SetTrackingSink(sink)
	register(t, e, map[string]Source{
		SourceCatalogANN: static(&models.SourceResult{Candidates: pool}),
	})

	res := e.RecoBlocks(context.Background(), Request{
		Anchor:    testAnchor(),
		RequestID: "req-1",
		SessionID: "sess-1",
	})

	prov := res.Provenance
	if !prov.DogfoodMode || !prov.InterleaveEnabled || !prov.ExplorationEnabled {
		t.Errorf("expected dogfood flags set, got %+v", prov)
	}
	if prov.Interleave == nil || prov.Interleave.RankerA != "ranker_v1" || prov.Interleave.RankerB != "ranker_v2" {
		t.Errorf("unexpected interleave info %+v", prov.Interleave)
	}
	if prov.PoolSize[models.BlockCompetitors] != 800 {
		t.Errorf("expected dogfood pool size 800, got %d", prov.PoolSize[models.BlockCompetitors])
	}

	// 4 interleaved plus 2 exploration slots.
	if len(res.Competitors) != 6 {
		t.Fatalf("expected 6 competitors, got %v", productIDs(res.Competitors))
	}
	if prov.Exploration == nil || prov.Exploration.Added[models.BlockCompetitors] != 2 {
		t.Errorf("expected 2 exploration slots recorded, got %+v", prov.Exploration)
	}

	seen := make(map[string]bool)
	tracking := res.Tracking[models.BlockCompetitors]
	for i := range res.Competitors {
		c := &res.Competitors[i]
		if c.SourceType() == models.SourceTypeOnPageRelated {
			t.Errorf("expected on-page candidate excluded, got %s", c.ProductID)
		}
		if seen[c.ProductID] {
			t.Errorf("duplicate competitor %s", c.ProductID)
		}
		seen[c.ProductID] = true

		entry, ok := tracking[c.ProductID]
		if !ok {
			t.Fatalf("missing tracking for %s", c.ProductID)
		}
		if entry.RankPosition != i+1 {
			t.Errorf("expected rank %d for %s, got %d", i+1, c.ProductID, entry.RankPosition)
		}
		if !models.IsValidAttribution(entry.Attribution) {
			t.Errorf("invalid attribution %q", entry.Attribution)
		}
		explore := i >= 4
		if entry.WasExplorationSlot != explore {
			t.Errorf("expected exploration slot %v at rank %d, got %v", explore, i+1, entry.WasExplorationSlot)
		}
		if explore && entry.Attribution != models.AttributionExplore {
			t.Errorf("expected explore attribution at rank %d, got %s", i+1, entry.Attribution)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.calls) != 1 {
		t.Fatalf("expected one tracking write, got %d", len(sink.calls))
	}
	call := sink.calls[0]
	if call.requestID != "req-1" || call.sessionID != "sess-1" || call.anchorID != "anchor-1" {
		t.Errorf("unexpected tracking write %+v", call)
	}
}

func TestRecoBlocks_TrackingNeedsBothIDs(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	e := newTestEngine(t, nil)
	e.SetTrackingSink(sink)

	e.RecoBlocks(context.Background(), Request{Anchor: testAnchor(), RequestID: "req-only"})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.calls) != 0 {
		t.Errorf("expected no tracking write without session id, got %d", len(sink.calls))
	}
}

func TestCoarseRerank(t *testing.T) {
	t.Parallel()

	a := models.Candidate{Name: "a", Similarity: fp(0.5), ScoreBreakdown: map[string]float64{"ingredient_similarity": 1}}
	b := models.Candidate{Name: "b", Similarity: fp(0.5), ScoreBreakdown: map[string]float64{"skin_fit_similarity": 1}}
	c := models.Candidate{Name: "c", ScoreBreakdown: map[string]float64{"social_reference_score": 1}}

	tests := []struct {
		name       string
		ingredient bool
		skin       bool
		wantOrder  string
		wantSims   map[string]float64
	}{
		{"no signals present", false, false, "a,b,c", map[string]float64{"a": 0.5, "b": 0.5, "c": 0.42}},
		{"ingredient present", true, false, "a,b,c", map[string]float64{"a": 0.58, "b": 0.5, "c": 0.42}},
		{"skin present", false, true, "b,a,c", map[string]float64{"a": 0.5, "b": 0.56, "c": 0.42}},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := coarseRerank([]models.Candidate{c, b, a}, tt.ingredient, tt.skin)

			names := make([]string, len(got))
			for i := range got {
				names[i] = got[i].Name
				if want := tt.wantSims[got[i].Name]; math.Abs(got[i].SimilarityOr(0)-want) > 1e-9 {
					t.Errorf("expected %s similarity %v, got %v", got[i].Name, want, got[i].SimilarityOr(0))
				}
			}
			if strings.Join(names, ",") != tt.wantOrder {
				t.Errorf("expected order %s, got %v", tt.wantOrder, names)
			}
		})
	}
}

func TestBlockConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		comp      int
		timedOut  []string
		fallbacks []string
		wantScore float64
		wantLevel string
	}{
		{"clean", 3, nil, nil, 0.66, ConfidenceMed},
		{"penalties", 3, []string{SourceCatalogANN}, []string{FallbackFastANN}, 0.58, ConfidenceMed},
		{"penalties capped", 3, []string{"a", "b", "c", "d", "e"}, []string{"1", "2", "3", "4", "5", "6"}, 0.36, ConfidenceLow},
		{"no competitors", 0, nil, nil, 0.18, ConfidenceLow},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := blockConfidence(tt.comp, 1, 0, tt.timedOut, tt.fallbacks)[models.BlockCompetitors]
			if math.Abs(got.Score-tt.wantScore) > 1e-9 || got.Level != tt.wantLevel {
				t.Errorf("expected %v/%s, got %v/%s", tt.wantScore, tt.wantLevel, got.Score, got.Level)
			}
			if len(got.Reasons) > models.MaxConfidenceReasons {
				t.Errorf("expected at most %d reasons, got %d", models.MaxConfidenceReasons, len(got.Reasons))
			}
		})
	}
}

func TestNewConfidence(t *testing.T) {
	t.Parallel()

	got := newConfidence(0.8, []string{"a", " ", "a", "b"})
	if got.Level != ConfidenceHigh {
		t.Errorf("expected high, got %s", got.Level)
	}
	if strings.Join(got.Reasons, ",") != "a,b" {
		t.Errorf("expected deduplicated reasons, got %v", got.Reasons)
	}

	if got := newConfidence(0.5, nil); got.Reasons[0] != "confidence_default" {
		t.Errorf("expected default reason, got %v", got.Reasons)
	}
}
