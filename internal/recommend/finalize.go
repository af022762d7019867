// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"context"
	"sort"
	"strings"

	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/experiment"
	"github.com/tomtom215/recoblocks/internal/recommend/routing"
)

// servedBlock is one block after selection, before tracking is derived.
type servedBlock struct {
	items       []models.Candidate
	attribution map[string]string
	explored    map[string]struct{}
}

// finalize scores and selects every block, then derives confidence,
// provenance and tracking from what is actually served.
func (r *run) finalize(ctx context.Context, pools *blockPools, catalog *models.SourceResult) *Result {
	cfg := r.e.config
	poolSize := cfg.EffectivePoolSize()

	gated := map[string][]models.Candidate{
		models.BlockCompetitors: pools.competitors,
		models.BlockRelated:     pools.related,
		models.BlockDupes:       pools.dupes,
	}

	result := &Result{
		Confidence:     make(map[string]Confidence, len(models.Blocks)),
		Tracking:       make(models.TrackingByBlock, len(models.Blocks)),
		Audit:          pools.audit,
		CatalogQueries: []string{},
	}

	explorationAdded := make(map[string]int, len(models.Blocks))
	for _, block := range models.Blocks {
		pool := dedupeByKey(gated[block], poolSize.For(block))
		scored := r.rerank(ctx, block, pool)

		served := r.selectServed(block, scored)
		if block != models.BlockRelated {
			served.items = withoutSourceType(served.items, models.SourceTypeOnPageRelated)
		}

		result.SetBlock(block, served.items)
		result.Tracking[block] = buildTracking(served)
		if len(served.explored) > 0 {
			explorationAdded[block] = countExplored(served)
		}
	}

	r.mu.Lock()
	for _, name := range SourceNames {
		r.diag.Blocks[name].Returned = countReturned(result, name)
	}
	r.diag.LatencyMS = r.e.now().Sub(r.start).Milliseconds()
	result.Diagnostics = r.diag
	result.Diagnostics.TimedOutBlocks = append([]string{}, r.diag.TimedOutBlocks...)
	result.Diagnostics.FallbacksUsed = append([]string{}, r.diag.FallbacksUsed...)
	r.mu.Unlock()

	result.Confidence = blockConfidence(
		len(result.Competitors),
		len(result.RelatedProducts),
		len(result.Dupes),
		result.Diagnostics.TimedOutBlocks,
		result.Diagnostics.FallbacksUsed,
	)
	result.Provenance = r.provenance(&result.Diagnostics, poolSize, explorationAdded)

	if catalog != nil {
		seen := make(map[string]struct{}, len(catalog.Queries))
		for _, q := range catalog.Queries {
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			result.CatalogQueries = append(result.CatalogQueries, q)
		}
	}

	if sink := r.e.trackingSink(); sink != nil && r.req.RequestID != "" && r.req.SessionID != "" {
		sink.Put(r.req.RequestID, r.req.SessionID, r.req.Anchor.ProductID, result.Tracking)
	}

	routing.RecordDecisions(pools.audit)
	for _, block := range models.Blocks {
		metrics.RecordBlock(block, len(result.Block(block)), result.Confidence[block].Score)
	}
	metrics.RecoDuration.Observe(float64(result.Diagnostics.LatencyMS) / 1000)

	return result
}

// rerank applies the registered rerankers in order.
func (r *run) rerank(ctx context.Context, block string, items []models.Candidate) []models.Candidate {
	for _, rr := range r.e.getRerankers() {
		items = rr.Rerank(ctx, block, &r.req.Anchor, items, r.req.Lang)
	}
	return items
}

// selectServed takes the head of the scored pool, optionally interleaving
// two rankers and appending exploration slots.
func (r *run) selectServed(block string, scored []models.Candidate) servedBlock {
	cfg := r.e.config
	out := servedBlock{attribution: map[string]string{}}

	if cfg.InterleaveActive() {
		seed := r.req.RequestID + ":" + r.req.SessionID + ":" + block
		inter := experiment.TeamDraftInterleave(
			rankedBy(scored, r.req.RankerA),
			rankedBy(scored, r.req.RankerB),
			r.maxCandidates,
			seed,
		)
		out.items = inter.Items
		out.attribution = inter.Attribution
	} else {
		n := r.maxCandidates
		if n > len(scored) {
			n = len(scored)
		}
		out.items = models.CloneCandidates(scored[:n])
		if out.items == nil {
			out.items = []models.Candidate{}
		}
	}

	if cfg.ExplorationActive() {
		ex := experiment.SelectExploration(out.items, scored, cfg.Dogfood.Exploration.RatePerBlock, cfg.Dogfood.Exploration.MaxItems)
		out.items = ex.Items
		out.explored = make(map[string]struct{}, len(ex.Added))
		for _, key := range ex.Added {
			out.explored[key] = struct{}{}
			out.attribution[key] = models.AttributionExplore
		}
	}
	return out
}

// rankedBy orders items by the named ranker score, falling back to
// score_total for candidates the ranker did not score.
func rankedBy(items []models.Candidate, ranker string) []models.Candidate {
	out := models.CloneCandidates(items)
	score := func(c *models.Candidate) float64 {
		if v, ok := c.RankerScores[ranker]; ok {
			return v
		}
		return c.Score()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return score(&out[i]) > score(&out[j])
	})
	return out
}

func buildTracking(served servedBlock) models.BlockTracking {
	out := make(models.BlockTracking, len(served.items))
	for i := range served.items {
		key := models.CandidateKey(&served.items[i], i)
		_, explored := served.explored[key]
		attribution := served.attribution[key]
		if !models.IsValidAttribution(attribution) {
			attribution = models.AttributionBoth
		}
		out[key] = models.TrackingEntry{
			RankPosition:       i + 1,
			Attribution:        attribution,
			WasExplorationSlot: explored,
		}
	}
	return out
}

func countExplored(served servedBlock) int {
	n := 0
	for i := range served.items {
		if _, ok := served.explored[models.CandidateKey(&served.items[i], i)]; ok {
			n++
		}
	}
	return n
}

func countReturned(result *Result, source string) int {
	n := 0
	for _, block := range models.Blocks {
		items := result.Block(block)
		for i := range items {
			if items[i].Origin == source {
				n++
			}
		}
	}
	return n
}

// blockConfidence scores each block from what was served and how much of
// the pipeline degraded along the way.
func blockConfidence(compCount, relCount, dupeCount int, timedOut, fallbacks []string) map[string]Confidence {
	timeoutPenalty := minFloat(0.18, float64(len(timedOut))*0.05)
	fallbackPenalty := minFloat(0.12, float64(len(fallbacks))*0.03)

	compScore := 0.18
	compReasons := []string{"all_competitor_recall_failed"}
	if compCount > 0 {
		compScore = 0.66 - timeoutPenalty - fallbackPenalty
		if compScore < 0.26 {
			compScore = 0.26
		}
		compReasons = []string{"competitor_recall_available"}
	}
	if containsString(timedOut, SourceCatalogANN) {
		compReasons = append(compReasons, "catalog_ann_timeout")
	}
	if containsString(timedOut, SourceKBBackfill) {
		compReasons = append(compReasons, "kb_backfill_timeout")
	}
	for _, token := range fallbacks {
		compReasons = append(compReasons, "fallback_"+token)
	}

	relScore, relReason := 0.40, "related_candidates_sparse"
	if relCount > 0 {
		relScore, relReason = 0.64, "related_candidates_available"
	}
	dupeScore, dupeReason := 0.35, "dupe_candidates_sparse"
	if dupeCount > 0 {
		dupeScore, dupeReason = 0.60, "dupe_candidates_available"
	}

	return map[string]Confidence{
		models.BlockCompetitors: newConfidence(compScore, compReasons),
		models.BlockRelated:     newConfidence(relScore, []string{relReason}),
		models.BlockDupes:       newConfidence(dupeScore, []string{dupeReason}),
	}
}

func newConfidence(score float64, reasons []string) Confidence {
	score = models.Round(models.Clamp01(score), 3)

	level := ConfidenceLow
	switch {
	case score >= 0.75:
		level = ConfidenceHigh
	case score >= 0.4:
		level = ConfidenceMed
	}

	out := make([]string, 0, len(reasons))
	seen := make(map[string]struct{}, len(reasons))
	for _, reason := range reasons {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			continue
		}
		if _, dup := seen[reason]; dup {
			continue
		}
		seen[reason] = struct{}{}
		out = append(out, reason)
		if len(out) == models.MaxConfidenceReasons {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, "confidence_default")
	}
	return Confidence{Score: score, Level: level, Reasons: out}
}

func (r *run) provenance(diag *Diagnostics, poolSize PoolSizeConfig, explorationAdded map[string]int) models.Provenance {
	cfg := r.e.config

	stats := make(map[string]models.BlockStat, len(diag.Blocks))
	for name, rec := range diag.Blocks {
		stats[name] = models.BlockStat{
			Eligible:   rec.Eligible,
			Returned:   rec.Returned,
			Timeout:    rec.Timeout,
			DurationMS: rec.DurationMS,
			Error:      rec.Error,
		}
	}

	p := models.Provenance{
		Pipeline:           models.PipelineRecoBlocks,
		ValidationMode:     models.ValidationSoftFail,
		TimedOutBlocks:     headStrings(diag.TimedOutBlocks, models.MaxTimedOutBlocks),
		FallbacksUsed:      headStrings(diag.FallbacksUsed, models.MaxFallbackTokens),
		BlockStats:         stats,
		Mode:               diag.Mode,
		OnPageMode:         diag.OnPageMode,
		DogfoodMode:        cfg.Dogfood.Enabled,
		InterleaveEnabled:  diag.InterleaveEnabled,
		ExplorationEnabled: diag.ExplorationEnabled,
		PoolSize:           poolSize.ToMap(),
	}
	if diag.InterleaveEnabled {
		p.Interleave = &models.InterleaveInfo{RankerA: r.req.RankerA, RankerB: r.req.RankerB}
	}
	if diag.ExplorationEnabled {
		p.Exploration = &models.ExplorationInfo{
			RatePerBlock: cfg.Dogfood.Exploration.RatePerBlock,
			MaxItems:     cfg.Dogfood.Exploration.MaxItems,
			Added:        explorationAdded,
		}
	}
	return p
}

func headStrings(values []string, n int) []string {
	if len(values) > n {
		values = values[:n]
	}
	return append([]string{}, values...)
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
