// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/cache"
	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/reranking"
	"github.com/tomtom215/recoblocks/internal/tickets"
)

// Run reasons. Fetch reasons from the adapter are passed through.
const (
	ReasonPayloadMissing     = "payload_missing"
	ReasonEmptySocialSignals = "empty_social_signals"
	ReasonNoSignalDelta      = "no_candidate_signal_delta"
	ReasonFetchFailed        = "social_fetch_failed"
	ReasonCanceled           = "canceled"
)

// Per-block patch outcomes.
const (
	PatchApplied = "applied"
	PatchNoop    = "noop"
	PatchSkipped = "skipped"
)

// DefaultMode labels runs whose job names no mode.
const DefaultMode = "main_path"

const persistPrefix = "social:"

// TicketPatcher is the part of the ticket store the worker writes to.
type TicketPatcher interface {
	Get(id string) (tickets.Ticket, error)
	ApplyPatch(id, block string, next []models.Candidate) tickets.PatchResult
	UpdateProvenance(id string, fn func(p *models.Provenance)) error
}

var _ TicketPatcher = (*tickets.Store)(nil)

// Job asks the worker to enrich one rendered card. When Payload is nil the
// current payload of TicketID is used.
type Job struct {
	TicketID  string           `json:"ticket_id,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	Anchor    *models.Anchor   `json:"anchor,omitempty"`
	Lang      string           `json:"lang,omitempty"`
	Mode      string           `json:"mode,omitempty"`
	TimeoutMS int64            `json:"timeout_ms,omitempty"`
	Payload   *tickets.Payload `json:"payload,omitempty"`
}

// BlockUpdate is the outcome of patching one block of the ticket.
type BlockUpdate struct {
	Block        string `json:"block"`
	Result       string `json:"result"`
	ChangedCount int    `json:"changed_count"`
	Version      int    `json:"version"`
}

// Evidence is the card-level digest of the social signals applied.
type Evidence struct {
	PlatformScores  map[string]float64 `json:"platform_scores,omitempty"`
	TypicalPositive []string           `json:"typical_positive"`
	TypicalNegative []string           `json:"typical_negative"`
	RiskForGroups   []string           `json:"risk_for_groups"`
	ChannelsUsed    []string           `json:"channels_used,omitempty"`
}

// RunResult is the outcome of one worker run.
type RunResult struct {
	OK            bool                          `json:"ok"`
	Reason        string                        `json:"reason,omitempty"`
	Mode          string                        `json:"mode,omitempty"`
	FromCache     bool                          `json:"from_cache"`
	InputHash     string                        `json:"input_hash,omitempty"`
	FetchStatus   string                        `json:"fetch_status,omitempty"`
	SourceVersion string                        `json:"source_version,omitempty"`
	ChannelsUsed  []string                      `json:"channels_used"`
	ChangedBlocks []string                      `json:"changed_blocks,omitempty"`
	AsyncUpdates  []BlockUpdate                 `json:"async_updates,omitempty"`
	FreshUntil    time.Time                     `json:"social_fresh_until,omitempty"`
	Evidence      *Evidence                     `json:"evidence,omitempty"`
	Blocks        map[string][]models.Candidate `json:"-"`
}

// Stats reports worker cache effectiveness and run outcomes.
type Stats struct {
	Cache cache.InFlightStats `json:"cache"`
	Runs  map[string]int64    `json:"runs"`
}

// fetchFailure carries a failed FetchResult through the in-flight cache,
// which does not cache errors.
type fetchFailure struct {
	result FetchResult
}

func (f *fetchFailure) Error() string {
	return "social fetch failed: " + f.result.Reason
}

// Worker applies social signals to a rendered card and patches its ticket.
type Worker struct {
	cfg      *Config
	fetcher  Fetcher
	tickets  TicketPatcher
	scorer   *reranking.Scorer
	inflight *cache.InFlight[FetchResult]
	persist  cache.Store
	now      func() time.Time
	logger   zerolog.Logger

	mu   sync.Mutex
	runs map[string]int64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPersistentCache keeps successful fetches in store across restarts.
func WithPersistentCache(store cache.Store) WorkerOption {
	return func(w *Worker) {
		w.persist = store
	}
}

// NewWorker creates a worker. A nil cfg uses DefaultConfig. ticketStore may
// be nil, in which case runs need an explicit payload and nothing is
// patched.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWorker(cfg *Config, fetcher Fetcher, ticketStore TicketPatcher, logger zerolog.Logger, opts ...WorkerOption) (*Worker, error) {
	if fetcher == nil {
		return nil, errors.New("social worker: fetcher is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.Channels = append([]string(nil), cfg.Channels...)
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	w := &Worker{
		cfg:      &c,
		fetcher:  fetcher,
		tickets:  ticketStore,
		scorer:   reranking.NewScorer(),
		inflight: cache.NewInFlight[FetchResult]("social_fetch", c.TTL, c.CacheMaxEntries),
		now:      time.Now,
		logger:   logger.With().Str("component", "social_worker").Logger(),
		runs:     make(map[string]int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Stats returns cache and run statistics.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	runs := make(map[string]int64, len(w.runs))
	for k, v := range w.runs {
		runs[k] = v
	}
	w.mu.Unlock()
	return Stats{Cache: w.inflight.Stats(), Runs: runs}
}

// candidateRef locates a candidate of the flattened payload.
type candidateRef struct {
	block string
	index int
	key   string
}

// Run fetches social signals for every candidate of the job's payload,
// merges them into the candidates, re-scores the changed blocks and patches
// the ticket block by block.
func (w *Worker) Run(ctx context.Context, job *Job) RunResult {
	mode := sanitizeText(job.Mode, 48)
	if mode == "" {
		mode = DefaultMode
	}
	res := w.run(ctx, job, mode)
	res.Mode = mode
	if res.ChannelsUsed == nil {
		res.ChannelsUsed = []string{}
	}

	outcome := res.Reason
	if res.OK {
		outcome = "ok"
	}
	metrics.SocialEnrichRuns.WithLabelValues(outcome).Inc()
	w.mu.Lock()
	w.runs[outcome]++
	w.mu.Unlock()

	w.logger.Debug().
		Str("ticket_id", job.TicketID).
		Str("request_id", job.RequestID).
		Str("outcome", outcome).
		Bool("from_cache", res.FromCache).
		Strs("changed_blocks", res.ChangedBlocks).
		Msg("social enrichment finished")
	return res
}

//nolint:gocyclo // linear pipeline with early exits
func (w *Worker) run(ctx context.Context, job *Job, mode string) RunResult {
	payload, ok := w.loadPayload(job)
	if !ok {
		return RunResult{Reason: ReasonPayloadMissing}
	}
	lang := models.NormalizeLang(job.Lang)

	var (
		flat []models.Candidate
		refs []candidateRef
	)
	for _, block := range models.Blocks {
		items := payload.Block(block)
		for i := range items {
			refs = append(refs, candidateRef{block: block, index: i, key: CandidateKey(&items[i], len(flat))})
			flat = append(flat, items[i])
		}
	}
	if len(flat) == 0 {
		return RunResult{Reason: ReasonEmptyCandidates}
	}

	in := &Input{
		Anchor:     job.Anchor,
		Candidates: flat,
		Lang:       lang,
		Channels:   w.cfg.Channels,
		Timeout:    time.Duration(job.TimeoutMS) * time.Millisecond,
	}
	fetched, fromCache := w.fetch(ctx, in)
	base := RunResult{FromCache: fromCache, InputHash: fetched.InputHash}

	if !fetched.OK {
		base.Reason = fetched.Reason
		if base.Reason == "" {
			base.Reason = ReasonFetchFailed
		}
		base.FetchStatus = base.Reason
		return base
	}

	fetchedChannels := lowerUniq(fetched.ChannelsUsed, maxChannels)
	if len(fetched.SignalsByKey) == 0 {
		base.Reason = ReasonEmptySocialSignals
		base.FetchStatus = "empty"
		base.ChannelsUsed = fetchedChannels
		return base
	}

	nextBlocks := make(map[string][]models.Candidate, len(models.Blocks))
	var changedBlocks []string
	for _, block := range models.Blocks {
		next, changed := w.applySignals(block, payload.Block(block), refs, fetched.SignalsByKey, job.Anchor, lang)
		nextBlocks[block] = next
		if changed {
			changedBlocks = append(changedBlocks, block)
		}
	}
	if len(changedBlocks) == 0 {
		base.Reason = ReasonNoSignalDelta
		base.FetchStatus = "no_delta"
		base.ChannelsUsed = fetchedChannels
		return base
	}

	freshUntil := w.now().Add(w.cfg.TTL).UTC()
	channelsUsed := models.NormalizeSocialChannels(append(cloneStrings(fetched.ChannelsUsed), signalChannels(fetched.SignalsByKey)...), maxChannels)
	sourceVersion := firstNonEmpty(fetched.SourceVersion, w.cfg.SourceVersion)

	res := RunResult{
		OK:            true,
		FromCache:     fromCache,
		InputHash:     fetched.InputHash,
		FetchStatus:   "ok",
		SourceVersion: sourceVersion,
		ChannelsUsed:  channelsUsed,
		ChangedBlocks: changedBlocks,
		FreshUntil:    freshUntil,
		Evidence:      buildEvidence(nextBlocks, lang, channelsUsed),
		Blocks:        nextBlocks,
	}

	if job.TicketID != "" && w.tickets != nil {
		// Provenance first: it does not bump the version and rides along
		// with the first applied block patch.
		err := w.tickets.UpdateProvenance(job.TicketID, func(p *models.Provenance) {
			p.SocialFetchMode = models.SocialFetchAsync
			p.SocialFreshUntil = freshUntil.Format(time.RFC3339Nano)
			p.SocialSourceVersion = sourceVersion
			if len(channelsUsed) > 0 {
				p.SocialChannelsUsed = cloneStrings(channelsUsed)
			}
		})
		if err != nil {
			w.logger.Warn().Err(err).Str("ticket_id", job.TicketID).Msg("social provenance not recorded")
		}
		for _, block := range changedBlocks {
			res.AsyncUpdates = append(res.AsyncUpdates, w.patch(job.TicketID, block, nextBlocks[block], mode))
		}
	}
	return res
}

func (w *Worker) loadPayload(job *Job) (tickets.Payload, bool) {
	if job.Payload != nil {
		return job.Payload.Clone(), true
	}
	if job.TicketID == "" || w.tickets == nil {
		return tickets.Payload{}, false
	}
	t, err := w.tickets.Get(job.TicketID)
	if err != nil {
		return tickets.Payload{}, false
	}
	return t.Payload, true
}

func (w *Worker) patch(ticketID, block string, next []models.Candidate, mode string) BlockUpdate {
	out := w.tickets.ApplyPatch(ticketID, block, next)
	update := BlockUpdate{Block: block, ChangedCount: out.ChangedCount, Version: out.Version}
	switch {
	case out.Applied:
		update.Result = PatchApplied
	case out.Reason == tickets.ReasonNoChange:
		update.Result = PatchNoop
	default:
		update.Result = PatchSkipped
	}
	w.logger.Debug().
		Str("ticket_id", ticketID).
		Str("block", block).
		Str("result", update.Result).
		Int("changed_count", update.ChangedCount).
		Str("mode", mode).
		Msg("social patch")
	return update
}

// fetch returns the fetch result for in, from the in-flight cache, the
// persistent cache or the fetcher. Failed fetches are not cached.
func (w *Worker) fetch(ctx context.Context, in *Input) (FetchResult, bool) {
	hash := InputHash(in, w.cfg)
	persisted := false

	res, fromCache, err := w.inflight.Do(ctx, hash, func(ctx context.Context) (FetchResult, error) {
		if r, ok := w.loadPersisted(ctx, hash); ok {
			persisted = true
			return r, nil
		}
		r := w.fetcher.Fetch(ctx, in)
		if !r.OK {
			return r, &fetchFailure{result: r}
		}
		w.storePersisted(ctx, hash, &r)
		return r, nil
	})
	if err != nil {
		var ff *fetchFailure
		if errors.As(err, &ff) {
			r := ff.result
			r.InputHash = hash
			return r, fromCache
		}
		reason := ReasonCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return FetchResult{Reason: reason, InputHash: hash}, false
	}
	res.InputHash = hash
	return res, fromCache || persisted
}

func (w *Worker) loadPersisted(ctx context.Context, hash string) (FetchResult, bool) {
	if w.persist == nil {
		return FetchResult{}, false
	}
	data, ok, err := w.persist.Get(ctx, persistPrefix+hash)
	if err != nil {
		w.logger.Warn().Err(err).Msg("social cache read failed")
		return FetchResult{}, false
	}
	if !ok {
		return FetchResult{}, false
	}
	var r FetchResult
	if err := json.Unmarshal(data, &r); err != nil || !r.OK {
		return FetchResult{}, false
	}
	return r, true
}

func (w *Worker) storePersisted(ctx context.Context, hash string, r *FetchResult) {
	if w.persist == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := w.persist.Set(ctx, persistPrefix+hash, data, w.cfg.TTL); err != nil {
		w.logger.Warn().Err(err).Msg("social cache write failed")
	}
}

// applySignals merges matching signals into a copy of items and re-scores
// the block when anything matched.
//
//nolint:gocritic // hugeParam: anchor is read-only
func (w *Worker) applySignals(block string, items []models.Candidate, refs []candidateRef, signals map[string]*models.SocialSignal, anchor *models.Anchor, lang string) ([]models.Candidate, bool) {
	keys := make(map[int]string, len(items))
	for _, ref := range refs {
		if ref.block == block {
			keys[ref.index] = ref.key
		}
	}

	merged := models.CloneCandidates(items)
	changed := false
	for i := range merged {
		sig, ok := signals[keys[i]]
		if !ok || sig == nil {
			continue
		}
		merged[i].SocialRaw = mergeCandidateSignal(merged[i].SocialRaw, sig)
		changed = true
	}
	if !changed {
		return items, false
	}
	return w.scorer.Score(block, anchor, merged, lang), true
}

// mergeCandidateSignal overlays sig onto the candidate's existing raw
// signal. Channels and keywords accumulate.
func mergeCandidateSignal(prev, sig *models.SocialSignal) *models.SocialSignal {
	out := prev.Clone()
	if out == nil {
		out = &models.SocialSignal{}
	}
	overlaySignal(out, sig)
	var prevChannels, prevKeywords []string
	if prev != nil {
		prevChannels, prevKeywords = prev.Channels, prev.TopicKeywords
	}
	out.Channels = models.NormalizeSocialChannels(append(cloneStrings(prevChannels), sig.Channels...), maxChannels)
	out.TopicKeywords = uniqFold(append(cloneStrings(prevKeywords), sig.TopicKeywords...), 64, maxMergedKeywords)
	return out
}

func signalChannels(signals map[string]*models.SocialSignal) []string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		if s := signals[k]; s != nil {
			out = append(out, s.Channels...)
		}
	}
	return out
}

func lowerUniq(in []string, limit int) []string {
	out := uniqFold(in, 64, limit)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	if out == nil {
		return []string{}
	}
	return out
}
