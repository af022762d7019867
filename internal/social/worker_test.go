// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/cache"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/tickets"
)

// fakeFetcher returns a fixed result and counts calls.
type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
	res   FetchResult
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ *Input) FetchResult {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return FetchResult{Reason: ReasonTimeout}
		case <-time.After(f.delay):
		}
	}
	return f.res
}

func okFetch(signals map[string]*models.SocialSignal, channels ...string) FetchResult {
	return FetchResult{OK: true, SignalsByKey: signals, ChannelsUsed: channels, SourceVersion: "svc.v3"}
}

func strongSignal(channels ...string) *models.SocialSignal {
	return &models.SocialSignal{
		CoMentionStrength: fv(0.8),
		SentimentProxy:    fv(0.2),
		TopicKeywords:     []string{"hydration", "barrier repair"},
		Channels:          channels,
	}
}

func workerAnchor() *models.Anchor {
	price := 40.0
	return &models.Anchor{ProductID: "anchor-1", Brand: "AnchorCo", Category: "skincare > serum", Price: &price}
}

func workerPayload() *tickets.Payload {
	return &tickets.Payload{
		Competitors: []models.Candidate{
			{ProductID: "c1", Name: "Rival Serum", Brand: "RivalCo", Category: "skincare > serum"},
			{ProductID: "c2", Name: "Other Serum", Brand: "OtherCo", Category: "skincare > serum"},
		},
		RelatedProducts: []models.Candidate{
			{ProductID: "r1", Name: "Cleanser", Brand: "AnchorCo", Category: "skincare > cleanser"},
		},
		Provenance: &models.Provenance{Pipeline: models.PipelineRecoBlocks},
	}
}

func newTestWorker(t *testing.T, f Fetcher, store TicketPatcher, opts ...WorkerOption) *Worker {
	t.Helper()
	w, err := NewWorker(nil, f, store, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return w
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	if _, err := NewWorker(nil, nil, nil, zerolog.Nop()); err == nil {
		t.Error("expected error without fetcher")
	}
	cfg := DefaultConfig()
	cfg.BaseURL = "mailto:x"
	if _, err := NewWorker(cfg, &fakeFetcher{}, nil, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestWorker_EarlyReasons(t *testing.T) {
	t.Parallel()

	store := tickets.NewStore(zerolog.Nop())
	empty := store.Create(tickets.CreateInput{})

	tests := []struct {
		name string
		job  *Job
		res  FetchResult
		want string
	}{
		{"no payload and no ticket", &Job{}, okFetch(nil), ReasonPayloadMissing},
		{"unknown ticket", &Job{TicketID: "nope"}, okFetch(nil), ReasonPayloadMissing},
		{"ticket without candidates", &Job{TicketID: empty.ID}, okFetch(nil), ReasonEmptyCandidates},
		{"fetch failure passed through", &Job{Payload: workerPayload()}, FetchResult{Reason: ReasonRateLimited}, ReasonRateLimited},
		{"fetch failure without reason", &Job{Payload: workerPayload()}, FetchResult{}, ReasonFetchFailed},
		{"no signals", &Job{Payload: workerPayload()}, okFetch(map[string]*models.SocialSignal{}, "Reddit"), ReasonEmptySocialSignals},
		{"signals for nobody", &Job{Payload: workerPayload()}, okFetch(map[string]*models.SocialSignal{"zzz": strongSignal("reddit")}), ReasonNoSignalDelta},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := newTestWorker(t, &fakeFetcher{res: tt.res}, store)
			res := w.Run(context.Background(), tt.job)
			if res.OK || res.Reason != tt.want {
				t.Errorf("expected %q, got ok=%v reason=%q", tt.want, res.OK, res.Reason)
			}
			if res.Mode != DefaultMode {
				t.Errorf("expected mode %q, got %q", DefaultMode, res.Mode)
			}
			if res.ChannelsUsed == nil {
				t.Error("expected non-nil channels")
			}
		})
	}
}

func TestWorker_EmptySignalsReportsChannels(t *testing.T) {
	t.Parallel()

	w := newTestWorker(t, &fakeFetcher{res: okFetch(map[string]*models.SocialSignal{}, "Reddit", "reddit", "TikTok")}, nil)
	res := w.Run(context.Background(), &Job{Payload: workerPayload()})
	if res.FetchStatus != "empty" {
		t.Errorf("expected fetch status empty, got %q", res.FetchStatus)
	}
	if len(res.ChannelsUsed) != 2 || res.ChannelsUsed[0] != "reddit" || res.ChannelsUsed[1] != "tiktok" {
		t.Errorf("expected [reddit tiktok], got %v", res.ChannelsUsed)
	}
}

func TestWorker_PatchesTicket(t *testing.T) {
	t.Parallel()

	store := tickets.NewStore(zerolog.Nop())
	ticket := store.Create(tickets.CreateInput{RequestID: "req-1", Payload: *workerPayload()})

	f := &fakeFetcher{res: okFetch(map[string]*models.SocialSignal{
		"c2": strongSignal("reddit", "xiaohongshu"),
	}, "youtube")}
	w := newTestWorker(t, f, store)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	res := w.Run(context.Background(), &Job{TicketID: ticket.ID, RequestID: "req-1", Anchor: workerAnchor(), Mode: "dogfood"})
	if !res.OK {
		t.Fatalf("expected ok, got %q", res.Reason)
	}
	if res.Mode != "dogfood" {
		t.Errorf("expected mode dogfood, got %q", res.Mode)
	}
	if len(res.ChangedBlocks) != 1 || res.ChangedBlocks[0] != models.BlockCompetitors {
		t.Fatalf("expected only competitors changed, got %v", res.ChangedBlocks)
	}
	if len(res.AsyncUpdates) != 1 || res.AsyncUpdates[0].Result != PatchApplied {
		t.Fatalf("expected one applied patch, got %+v", res.AsyncUpdates)
	}
	if res.AsyncUpdates[0].Version != ticket.Version+1 {
		t.Errorf("expected version %d, got %d", ticket.Version+1, res.AsyncUpdates[0].Version)
	}
	wantFresh := fixed.Add(DefaultTTL)
	if !res.FreshUntil.Equal(wantFresh) {
		t.Errorf("expected fresh until %v, got %v", wantFresh, res.FreshUntil)
	}
	wantChannels := []string{models.ChannelYouTube, models.ChannelReddit, models.ChannelXiaohongshu}
	if len(res.ChannelsUsed) != 3 || res.ChannelsUsed[0] != wantChannels[0] || res.ChannelsUsed[2] != wantChannels[2] {
		t.Errorf("expected %v, got %v", wantChannels, res.ChannelsUsed)
	}

	updated, err := store.Get(ticket.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	prov := updated.Payload.Provenance
	if prov.SocialFetchMode != models.SocialFetchAsync {
		t.Errorf("expected async_refresh, got %q", prov.SocialFetchMode)
	}
	if prov.SocialFreshUntil != wantFresh.Format(time.RFC3339Nano) {
		t.Errorf("expected fresh until %q, got %q", wantFresh.Format(time.RFC3339Nano), prov.SocialFreshUntil)
	}
	if prov.SocialSourceVersion != "svc.v3" {
		t.Errorf("expected svc.v3, got %q", prov.SocialSourceVersion)
	}
	if prov.Pipeline != models.PipelineRecoBlocks {
		t.Errorf("expected pipeline kept, got %q", prov.Pipeline)
	}

	var enriched *models.Candidate
	for i := range updated.Payload.Competitors {
		if updated.Payload.Competitors[i].ProductID == "c2" {
			enriched = &updated.Payload.Competitors[i]
		}
	}
	if enriched == nil {
		t.Fatal("expected c2 kept in competitors")
	}
	if enriched.SocialRaw == nil || *enriched.SocialRaw.CoMentionStrength != 0.8 {
		t.Errorf("expected social signal merged, got %+v", enriched.SocialRaw)
	}
	if _, ok := enriched.ScoreBreakdown["score_total"]; !ok {
		t.Error("expected changed block re-scored")
	}
	if updated.Payload.Competitors[0].ProductID != "c1" {
		t.Errorf("expected locked head kept, got %q", updated.Payload.Competitors[0].ProductID)
	}

	if res.Evidence == nil || res.Evidence.PlatformScores["Reddit"] != 0.8 {
		t.Errorf("expected reddit platform score 0.8, got %+v", res.Evidence)
	}
	if len(res.Evidence.TypicalNegative) != 1 {
		t.Errorf("expected cautious sentiment flagged, got %v", res.Evidence.TypicalNegative)
	}

	updates, err := store.GetUpdates(ticket.ID, ticket.Version)
	if err != nil || !updates.HasUpdate {
		t.Errorf("expected update visible to pollers, got %+v, %v", updates, err)
	}
}

func TestWorker_SecondPatchIsNoop(t *testing.T) {
	t.Parallel()

	store := tickets.NewStore(zerolog.Nop())
	payload := workerPayload()
	ticket := store.Create(tickets.CreateInput{Payload: *payload})

	f := &fakeFetcher{res: okFetch(map[string]*models.SocialSignal{"r1": strongSignal("reddit")})}
	w := newTestWorker(t, f, store)

	job := &Job{TicketID: ticket.ID, Anchor: workerAnchor(), Payload: payload}
	first := w.Run(context.Background(), job)
	second := w.Run(context.Background(), job)

	if len(first.AsyncUpdates) != 1 || first.AsyncUpdates[0].Result != PatchApplied {
		t.Fatalf("expected first run applied, got %+v", first.AsyncUpdates)
	}
	if len(second.AsyncUpdates) != 1 || second.AsyncUpdates[0].Result != PatchNoop {
		t.Errorf("expected second run noop, got %+v", second.AsyncUpdates)
	}
	if !second.FromCache {
		t.Error("expected second run served from cache")
	}
	if f.calls.Load() != 1 {
		t.Errorf("expected one fetch, got %d", f.calls.Load())
	}
}

func TestWorker_MissingTicketSkipsPatch(t *testing.T) {
	t.Parallel()

	store := tickets.NewStore(zerolog.Nop())
	f := &fakeFetcher{res: okFetch(map[string]*models.SocialSignal{"c1": strongSignal("reddit")})}
	w := newTestWorker(t, f, store)

	res := w.Run(context.Background(), &Job{TicketID: "gone", Payload: workerPayload()})
	if !res.OK {
		t.Fatalf("expected ok with explicit payload, got %q", res.Reason)
	}
	if len(res.AsyncUpdates) != 1 || res.AsyncUpdates[0].Result != PatchSkipped {
		t.Errorf("expected skipped patch, got %+v", res.AsyncUpdates)
	}
}

func TestWorker_FailuresNotCached(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{res: FetchResult{Reason: ReasonTimeout}}
	w := newTestWorker(t, f, nil)

	for i := 0; i < 3; i++ {
		res := w.Run(context.Background(), &Job{Payload: workerPayload()})
		if res.Reason != ReasonTimeout || res.FromCache {
			t.Errorf("run %d: expected uncached timeout, got %q from_cache=%v", i, res.Reason, res.FromCache)
		}
	}
	if f.calls.Load() != 3 {
		t.Errorf("expected 3 fetches, got %d", f.calls.Load())
	}

	stats := w.Stats()
	if stats.Runs[ReasonTimeout] != 3 {
		t.Errorf("expected 3 timeout runs, got %v", stats.Runs)
	}
	if stats.Cache.Miss != 3 {
		t.Errorf("expected 3 cache misses, got %+v", stats.Cache)
	}
}

func TestWorker_ConcurrentRunsShareFetch(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		delay: 50 * time.Millisecond,
		res:   okFetch(map[string]*models.SocialSignal{"c1": strongSignal("reddit")}),
	}
	w := newTestWorker(t, f, nil)

	var wg sync.WaitGroup
	results := make([]RunResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = w.Run(context.Background(), &Job{Payload: workerPayload(), Anchor: workerAnchor()})
		}(i)
	}
	wg.Wait()

	if f.calls.Load() != 1 {
		t.Errorf("expected one shared fetch, got %d", f.calls.Load())
	}
	hash := results[0].InputHash
	for i, res := range results {
		if !res.OK {
			t.Errorf("run %d: expected ok, got %q", i, res.Reason)
		}
		if res.InputHash != hash {
			t.Errorf("run %d: expected same input hash", i)
		}
	}
	if hit := w.Stats().Cache.Hit; hit != 7 {
		t.Errorf("expected 7 cache hits, got %d", hit)
	}
}

func TestWorker_PersistentCache(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	signals := map[string]*models.SocialSignal{"c1": strongSignal("reddit")}
	first := &fakeFetcher{res: okFetch(signals)}
	w1 := newTestWorker(t, first, nil, WithPersistentCache(store))
	if res := w1.Run(context.Background(), &Job{Payload: workerPayload()}); !res.OK {
		t.Fatalf("expected first run ok, got %q", res.Reason)
	}

	second := &fakeFetcher{res: FetchResult{Reason: ReasonUpstreamError}}
	w2 := newTestWorker(t, second, nil, WithPersistentCache(store))
	res := w2.Run(context.Background(), &Job{Payload: workerPayload()})
	if !res.OK || !res.FromCache {
		t.Errorf("expected persisted result, got ok=%v from_cache=%v reason=%q", res.OK, res.FromCache, res.Reason)
	}
	if second.calls.Load() != 0 {
		t.Errorf("expected no fetch on persisted hit, got %d", second.calls.Load())
	}
}

func TestWorker_Canceled(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{delay: time.Second, res: okFetch(map[string]*models.SocialSignal{"c1": strongSignal("reddit")})}
	w := newTestWorker(t, f, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := w.Run(ctx, &Job{Payload: workerPayload()})
	if res.Reason != ReasonTimeout {
		t.Errorf("expected timeout, got %q", res.Reason)
	}
}

func TestMergeCandidateSignal(t *testing.T) {
	t.Parallel()

	prev := &models.SocialSignal{
		CoMentionStrength: fv(0.3),
		SentimentProxy:    fv(0.9),
		TopicKeywords:     []string{"Glow"},
		Channels:          []string{"reddit"},
	}
	next := &models.SocialSignal{
		CoMentionStrength: fv(0.7),
		TopicKeywords:     []string{"glow", "texture"},
		Channels:          []string{"tiktok", "reddit"},
	}
	got := mergeCandidateSignal(prev, next)

	if *got.CoMentionStrength != 0.7 {
		t.Errorf("expected co-mention replaced, got %v", *got.CoMentionStrength)
	}
	if *got.SentimentProxy != 0.9 {
		t.Errorf("expected sentiment kept, got %v", *got.SentimentProxy)
	}
	if len(got.TopicKeywords) != 2 || got.TopicKeywords[0] != "Glow" || got.TopicKeywords[1] != "texture" {
		t.Errorf("expected [Glow texture], got %v", got.TopicKeywords)
	}
	if len(got.Channels) != 2 || got.Channels[0] != "reddit" || got.Channels[1] != "tiktok" {
		t.Errorf("expected [reddit tiktok], got %v", got.Channels)
	}
	if *prev.CoMentionStrength != 0.3 {
		t.Error("expected previous signal untouched")
	}
}
