// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/routing"
)

// ErrUnknownSource is returned when registering a source under a name the
// scheduler does not dispatch.
var ErrUnknownSource = errors.New("unknown source")

// Retry floors for competitor fallbacks, in milliseconds.
const (
	kbRetryFloorMS      = 120
	catalogRetryFloorMS = 140
)

// Engine fans a request out to the candidate sources under one time budget,
// routes the merged candidates into blocks and assembles the response.
// It is safe for concurrent use.
type Engine struct {
	// Configuration
	config *Config
	logger zerolog.Logger

	// Registered sources and rerankers
	sources   map[string]Source
	rerankers []Reranker
	algMu     sync.RWMutex

	tracking TrackingSink

	now func() time.Time

	// Metrics
	requestCount atomic.Int64
}

// NewEngine creates a new blocks scheduler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:    cfg.Clone(),
		logger:    logger.With().Str("component", "recommend").Logger(),
		sources:   make(map[string]Source),
		rerankers: make([]Reranker, 0),
		now:       time.Now,
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// RequestCount returns the number of RecoBlocks calls served.
func (e *Engine) RequestCount() int64 {
	return e.requestCount.Load()
}

// RegisterSource binds src to one of SourceNames. Registering a nil source
// removes the binding.
func (e *Engine) RegisterSource(name string, src Source) error {
	if !IsKnownSource(name) {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	e.algMu.Lock()
	defer e.algMu.Unlock()

	if src == nil {
		delete(e.sources, name)
		return nil
	}
	e.sources[name] = src
	e.logger.Info().
		Str("source", name).
		Msg("registered source")
	return nil
}

// RegisterReranker adds a reranker to the block scoring pipeline.
func (e *Engine) RegisterReranker(rr Reranker) {
	e.algMu.Lock()
	defer e.algMu.Unlock()

	e.rerankers = append(e.rerankers, rr)
	e.logger.Info().
		Str("reranker", rr.Name()).
		Msg("registered reranker")
}

// SetTrackingSink sets where tracking snapshots are written.
func (e *Engine) SetTrackingSink(sink TrackingSink) {
	e.algMu.Lock()
	defer e.algMu.Unlock()
	e.tracking = sink
}

func (e *Engine) source(name string) Source {
	e.algMu.RLock()
	defer e.algMu.RUnlock()
	return e.sources[name]
}

func (e *Engine) getRerankers() []Reranker {
	e.algMu.RLock()
	defer e.algMu.RUnlock()
	return e.rerankers
}

func (e *Engine) trackingSink() TrackingSink {
	e.algMu.RLock()
	defer e.algMu.RUnlock()
	return e.tracking
}

// run holds the state of one RecoBlocks call. Stats are written by source
// goroutines, so mu guards diag.
type run struct {
	e      *Engine
	req    Request
	router routing.Config
	logger zerolog.Logger

	start         time.Time
	deadline      time.Time
	budgetMS      int64
	maxCandidates int

	mu   sync.Mutex
	diag Diagnostics
}

// RecoBlocks computes the competitors, related products and dupes blocks
// for req. It never fails: source errors, timeouts and an exhausted budget
// degrade the result and are reported in diagnostics and confidence.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) RecoBlocks(ctx context.Context, req Request) *Result {
	e.requestCount.Add(1)
	r := e.newRun(req)

	results := r.dispatchPrimary(ctx)
	pools := r.routePrimary(ctx, results)
	result := r.finalize(ctx, &pools, results[SourceCatalogANN])

	r.logger.Info().
		Int64("budget_ms", r.budgetMS).
		Strs("timed_out_blocks", result.Diagnostics.TimedOutBlocks).
		Strs("fallbacks_used", result.Diagnostics.FallbacksUsed).
		Int("competitors", len(result.Competitors)).
		Int("related_products", len(result.RelatedProducts)).
		Int("dupes", len(result.Dupes)).
		Int64("latency_ms", result.Diagnostics.LatencyMS).
		Msg("reco blocks completed")

	return result
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) newRun(req Request) *run {
	cfg := e.config

	budget := req.BudgetMS
	if budget == 0 {
		budget = cfg.BudgetMS
	}
	budget = clampInt64(budget, MinBudgetMS, MaxBudgetMS)

	maxCandidates := req.MaxCandidates
	if maxCandidates == 0 {
		maxCandidates = cfg.MaxCandidates
	}
	maxCandidates = clampInt(maxCandidates, MinMaxCandidates, MaxMaxCandidates)

	req.Mode = strings.TrimSpace(req.Mode)
	if req.Mode == "" {
		req.Mode = ModeMainPath
	}
	if strings.TrimSpace(req.OnPageMode) == "" {
		req.OnPageMode = cfg.OnPageMode
	}
	req.OnPageMode = NormalizeOnPageMode(req.OnPageMode)
	req.Lang = models.NormalizeLang(req.Lang)
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.RankerA == "" {
		req.RankerA = cfg.Dogfood.Interleave.RankerA
	}
	if req.RankerB == "" {
		req.RankerB = cfg.Dogfood.Interleave.RankerB
	}

	router := cfg.Router
	if req.Router != nil {
		router = *req.Router
	}

	start := e.now()
	r := &run{
		e:      e,
		req:    req,
		router: router,
		logger: e.logger.With().
			Str("request_id", req.RequestID).
			Str("mode", req.Mode).
			Logger(),
		start:         start,
		deadline:      start.Add(time.Duration(budget) * time.Millisecond),
		budgetMS:      budget,
		maxCandidates: maxCandidates,
		diag: Diagnostics{
			Mode:               req.Mode,
			OnPageMode:         req.OnPageMode,
			BudgetMS:           budget,
			Blocks:             make(map[string]*models.SourceExecutionRecord, len(SourceNames)),
			TimedOutBlocks:     []string{},
			FallbacksUsed:      []string{},
			InterleaveEnabled:  cfg.InterleaveActive(),
			ExplorationEnabled: cfg.ExplorationActive(),
		},
	}
	for _, name := range SourceNames {
		r.diag.Blocks[name] = &models.SourceExecutionRecord{}
	}
	return r
}

// dispatchPrimary runs the primary sources concurrently. A failing source
// never cancels the others.
func (r *run) dispatchPrimary(ctx context.Context) map[string]*models.SourceResult {
	names := append([]string(nil), primarySources...)
	if r.req.OnPageMode == OnPageAlways {
		names = append(names, SourceOnPageRelated)
	}

	out := make([]*models.SourceResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(idx int, sourceName string) {
			defer wg.Done()
			out[idx] = r.executeSource(ctx, sourceName, r.e.config.Timeouts.For(sourceName), false)
		}(i, name)
	}
	wg.Wait()

	results := make(map[string]*models.SourceResult, len(names))
	for i, name := range names {
		results[name] = out[i]
	}
	return results
}

// executeSource dispatches one source call within the remaining budget and
// records its outcome. It always returns a normalized, possibly empty,
// result.
func (r *run) executeSource(ctx context.Context, name string, timeoutMS int64, retry bool) *models.SourceResult {
	src := r.e.source(name)
	if src == nil {
		r.mu.Lock()
		stat := r.diag.Blocks[name]
		if stat.Error == "" {
			stat.Error = SourceErrNotConfigured
		}
		r.mu.Unlock()
		metrics.RecordSourceCall(name, "not_configured", 0)
		return NormalizeSourceResult(nil, name)
	}

	left := r.deadline.Sub(r.e.now()).Milliseconds()
	if left <= 0 {
		r.mu.Lock()
		stat := r.diag.Blocks[name]
		stat.Timeout = true
		if stat.Error == "" {
			stat.Error = SourceErrBudgetExhausted
		}
		r.addTimedOutLocked(name)
		r.mu.Unlock()
		metrics.RecordSourceCall(name, SourceErrBudgetExhausted, 0)
		return NormalizeSourceResult(nil, name)
	}

	bounded := timeoutMS
	if left < bounded {
		bounded = left
	}
	if bounded < minDispatchMS {
		bounded = minDispatchMS
	}

	r.mu.Lock()
	r.diag.Blocks[name].Attempts++
	r.mu.Unlock()

	req := models.SourceRequest{
		SourceName: name,
		Anchor:     r.req.Anchor,
		Context:    r.req.Context,
		TimeoutMS:  bounded,
		DeadlineMS: r.deadline.UnixMilli(),
		BudgetMS:   r.budgetMS,
		Retry:      retry,
	}

	started := r.e.now()
	res, err := callSource(ctx, src, req, time.Duration(bounded)*time.Millisecond)
	elapsed := r.e.now().Sub(started)

	r.mu.Lock()
	defer r.mu.Unlock()
	stat := r.diag.Blocks[name]
	stat.DurationMS += elapsed.Milliseconds()

	switch {
	case err == nil:
		out := NormalizeSourceResult(res, name)
		stat.Eligible += out.Eligible()
		metrics.RecordSourceCall(name, "ok", elapsed)
		return out
	case errors.Is(err, context.DeadlineExceeded):
		stat.Timeout = true
		stat.Error = SourceErrTimeout
		r.addTimedOutLocked(name)
		metrics.RecordSourceCall(name, SourceErrTimeout, elapsed)
		r.logger.Warn().Str("source", name).Int64("timeout_ms", bounded).Msg("source timed out")
	default:
		stat.Error = truncateError(err)
		metrics.RecordSourceCall(name, "error", elapsed)
		r.logger.Warn().Str("source", name).Err(err).Msg("source failed")
	}
	return NormalizeSourceResult(nil, name)
}

type sourceOutcome struct {
	res *models.SourceResult
	err error
}

// callSource runs src with its own deadline. A source that ignores ctx is
// abandoned when the deadline passes; its late result is dropped into the
// buffered channel and discarded.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func callSource(ctx context.Context, src Source, req models.SourceRequest, timeout time.Duration) (*models.SourceResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan sourceOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- sourceOutcome{err: fmt.Errorf("source panic: %v", p)}
			}
		}()
		res, err := src.Fetch(callCtx, req)
		ch <- sourceOutcome{res: res, err: err}
	}()

	select {
	case <-callCtx.Done():
		return nil, callCtx.Err()
	case out := <-ch:
		if out.err != nil && callCtx.Err() != nil {
			return nil, callCtx.Err()
		}
		return out.res, out.err
	}
}

func truncateError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return SourceErrFailed
	}
	if len(msg) > maxSourceErrorLen {
		msg = msg[:maxSourceErrorLen]
	}
	return msg
}

// addTimedOutLocked must be called with mu held.
func (r *run) addTimedOutLocked(name string) {
	for _, n := range r.diag.TimedOutBlocks {
		if n == name {
			return
		}
	}
	r.diag.TimedOutBlocks = append(r.diag.TimedOutBlocks, name)
}

func (r *run) addFallback(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.diag.FallbacksUsed {
		if t == token {
			return
		}
	}
	r.diag.FallbacksUsed = append(r.diag.FallbacksUsed, token)
	metrics.RecordFallback(token)
	r.logger.Debug().Str("fallback", token).Msg("fallback applied")
}

func (r *run) timedOut(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.diag.Blocks[name].Timeout
}

// retryTimeout extends the base timeout by the grace period only for a
// source that already timed out.
func (r *run) retryTimeout(name string, floorMS int64) int64 {
	timeout := r.e.config.Timeouts.For(name)
	if r.timedOut(name) {
		timeout += r.e.config.RetryGraceMS
	}
	if timeout < floorMS {
		timeout = floorMS
	}
	return timeout
}

// blockPools are the routed candidate pools before scoring.
type blockPools struct {
	competitors []models.Candidate
	related     []models.Candidate
	dupes       []models.Candidate
	audit       []routing.AuditEntry
}

func (r *run) route(candidates []models.Candidate) routing.Result {
	return routing.Route(r.req.Anchor, candidates, r.router)
}

func (p *blockPools) assign(routed *routing.Result) {
	p.competitors = routed.Competitors
	p.related = routed.Related
	p.dupes = routed.Dupes
	p.audit = routed.Audit
}

// routePrimary merges the primary results, routes them and runs the
// fallback stage.
func (r *run) routePrimary(ctx context.Context, results map[string]*models.SourceResult) blockPools {
	empty := NormalizeSourceResult(nil, "")
	get := func(name string) *models.SourceResult {
		if res, ok := results[name]; ok && res != nil {
			return res
		}
		return empty
	}

	catalog := get(SourceCatalogANN)
	ingredient := get(SourceIngredientIndex)
	skin := get(SourceSkinFitLight)
	kb := get(SourceKBBackfill)
	dupe := get(SourceDupePipeline)

	merged := make([]models.Candidate, 0,
		len(catalog.Candidates)+len(ingredient.Candidates)+len(skin.Candidates)+
			len(kb.Competitors)+len(kb.Candidates)+len(dupe.Candidates))
	merged = append(merged, catalog.Candidates...)
	merged = append(merged, ingredient.Candidates...)
	merged = append(merged, skin.Candidates...)
	merged = append(merged, kb.Competitors...)
	merged = append(merged, kb.Candidates...)
	merged = append(merged, dupe.Candidates...)
	if onPage, ok := results[SourceOnPageRelated]; ok && onPage != nil {
		merged = append(merged, onPage.Candidates...)
		merged = append(merged, onPage.RelatedProducts...)
	}

	reranked := coarseRerank(merged, ingredient.Present(), skin.Present())

	var pools blockPools
	routed := r.route(reranked)
	pools.assign(&routed)

	r.competitorFallback(ctx, &pools, reranked)
	r.relatedFallback(ctx, &pools)
	r.dupesFallback(&pools, kb)

	pools.competitors = withoutSourceType(pools.competitors, models.SourceTypeOnPageRelated)
	pools.dupes = withoutSourceType(pools.dupes, models.SourceTypeOnPageRelated)
	return pools
}

// competitorFallback retries kb_backfill and then catalog_ann when no
// competitor survived routing or either source timed out.
func (r *run) competitorFallback(ctx context.Context, pools *blockPools, reranked []models.Candidate) {
	if len(pools.competitors) > 0 && !r.timedOut(SourceCatalogANN) && !r.timedOut(SourceKBBackfill) {
		return
	}

	if len(pools.competitors) == 0 || r.timedOut(SourceKBBackfill) {
		r.addFallback(FallbackKBCompetitors)
		retry := r.executeSource(ctx, SourceKBBackfill, r.retryTimeout(SourceKBBackfill, kbRetryFloorMS), true)
		if len(retry.Competitors) > 0 || len(retry.Candidates) > 0 {
			merged := append(models.CloneCandidates(reranked), retry.Competitors...)
			merged = append(merged, retry.Candidates...)
			routed := r.route(coarseRerank(merged, true, true))
			pools.assign(&routed)
		}
	}

	if len(pools.competitors) == 0 || r.timedOut(SourceCatalogANN) {
		r.addFallback(FallbackFastANN)
		retry := r.executeSource(ctx, SourceCatalogANN, r.retryTimeout(SourceCatalogANN, catalogRetryFloorMS), true)
		if len(retry.Candidates) > 0 {
			merged := append(models.CloneCandidates(reranked), retry.Candidates...)
			routed := r.route(coarseRerank(merged, true, true))
			pools.assign(&routed)
		}
	}
}

// relatedFallback fetches on-page related products when routing left the
// related block empty. They only ever join the related block.
func (r *run) relatedFallback(ctx context.Context, pools *blockPools) {
	if len(pools.related) > 0 || r.req.OnPageMode != OnPageFallbackOnly {
		return
	}

	r.addFallback(FallbackRelatedOnPage)
	res := r.executeSource(ctx, SourceOnPageRelated, r.e.config.Timeouts.For(SourceOnPageRelated), true)
	if len(res.Candidates) == 0 && len(res.RelatedProducts) == 0 {
		return
	}

	onPage := append(append([]models.Candidate(nil), res.Candidates...), res.RelatedProducts...)
	routed := r.route(onPage)
	pools.related = dedupeByKey(append(pools.related, routed.Related...), 0)
}

// dupesFallback routes the dupes kb_backfill returned in the primary stage.
func (r *run) dupesFallback(pools *blockPools, kb *models.SourceResult) {
	if len(pools.dupes) > 0 {
		return
	}

	r.addFallback(FallbackKBDupes)
	if len(kb.Dupes) == 0 {
		return
	}
	routed := r.route(kb.Dupes)
	if len(routed.Dupes) > 0 {
		pools.dupes = dedupeByKey(routed.Dupes, 0)
	}
}

// coarseRerank boosts similarity with the cheap signals the primary
// sources attach, then sorts by similarity desc and name.
func coarseRerank(candidates []models.Candidate, ingredientPresent, skinPresent bool) []models.Candidate {
	out := models.CloneCandidates(candidates)
	if out == nil {
		out = []models.Candidate{}
	}
	for i := range out {
		c := &out[i]
		base := c.SimilarityOr(0.4)
		boost := breakdownAny(c, "social_reference_score", "social_reference_strength") * 0.02
		if ingredientPresent {
			boost += breakdownAny(c, "ingredient_similarity", "ingredient_functional_similarity") * 0.08
		}
		if skinPresent {
			boost += breakdownAny(c, "skin_fit_similarity") * 0.06
		}
		c.SetSimilarity(models.Round(models.Clamp01(base+boost), 3))
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].SimilarityOr(0), out[j].SimilarityOr(0)
		if si != sj {
			return si > sj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func breakdownAny(c *models.Candidate, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := c.ScoreBreakdown[k]; ok {
			return models.Norm01(v)
		}
	}
	return 0
}

// dedupeByKey keeps the first candidate per identity. limit <= 0 keeps all.
func dedupeByKey(items []models.Candidate, limit int) []models.Candidate {
	out := make([]models.Candidate, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		key := models.CandidateKey(&items[i], i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, items[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func withoutSourceType(items []models.Candidate, sourceType string) []models.Candidate {
	out := make([]models.Candidate, 0, len(items))
	for i := range items {
		if items[i].SourceType() == sourceType {
			continue
		}
		out = append(out, items[i])
	}
	return out
}
