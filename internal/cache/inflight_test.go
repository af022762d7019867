// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInFlightCachesSuccessfulResults(t *testing.T) {
	t.Parallel()

	c := NewInFlight[string]("test_inflight", time.Minute, 10)
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		return "value", nil
	}

	v, fromCache, err := c.Do(context.Background(), "k", fn)
	if err != nil || v != "value" || fromCache {
		t.Fatalf("expected fresh value, got %q fromCache=%v err=%v", v, fromCache, err)
	}

	v, fromCache, err = c.Do(context.Background(), "k", fn)
	if err != nil || v != "value" || !fromCache {
		t.Fatalf("expected cached value, got %q fromCache=%v err=%v", v, fromCache, err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}

	stats := c.Stats()
	if stats.Hit != 1 || stats.Miss != 1 || stats.Entries != 1 {
		t.Errorf("expected hit=1 miss=1 entries=1, got %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestInFlightDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	c := NewInFlight[int]("test_inflight", time.Minute, 10)
	boom := errors.New("boom")
	var calls int

	for i := 0; i < 2; i++ {
		_, _, err := c.Do(context.Background(), "k", func(context.Context) (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected no cached entry after errors")
	}
}

func TestInFlightExpiry(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	c := NewInFlight[int]("test_inflight", time.Second, 10)
	c.now = clock.Now

	n := 0
	fn := func(context.Context) (int, error) {
		n++
		return n, nil
	}

	v, _, _ := c.Do(context.Background(), "k", fn)
	clock.Advance(2 * time.Second)
	v2, fromCache, _ := c.Do(context.Background(), "k", fn)

	if v != 1 || v2 != 2 || fromCache {
		t.Errorf("expected refetch after expiry, got %d then %d (fromCache=%v)", v, v2, fromCache)
	}
}

func TestInFlightEvictsOldest(t *testing.T) {
	t.Parallel()

	c := NewInFlight[string]("test_inflight", time.Minute, 2)
	for _, k := range []string{"a", "b", "c"} {
		key := k
		if _, _, err := c.Do(context.Background(), key, func(context.Context) (string, error) {
			return key, nil
		}); err != nil {
			t.Fatalf("do %s: %v", key, err)
		}
	}

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to be cached", k)
		}
	}
}

func TestInFlightDeduplicatesConcurrentCalls(t *testing.T) {
	t.Parallel()

	c := NewInFlight[int]("test_inflight", time.Minute, 10)
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	fn := func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]int, callers)
	shared := make([]bool, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], shared[0], _ = c.Do(context.Background(), "k", fn)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], shared[i], _ = c.Do(context.Background(), "k", fn)
		}(i)
	}

	// Wait until every joiner has registered before releasing the leader.
	deadline := time.Now().Add(2 * time.Second)
	for c.Stats().InFlightHit < callers-1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 underlying call, got %d", got)
	}
	for i, r := range results {
		if r != 42 {
			t.Errorf("caller %d: expected 42, got %d", i, r)
		}
	}
	if shared[0] {
		t.Error("expected leader to report a fresh result")
	}
	if got := c.Stats().InFlightHit; got != callers-1 {
		t.Errorf("expected %d in-flight hits, got %d", callers-1, got)
	}
}

func TestInFlightCallerCancellation(t *testing.T) {
	t.Parallel()

	c := NewInFlight[string]("test_inflight", time.Minute, 10)
	release := make(chan struct{})
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_, _, err := c.Do(ctx, "k", func(fnCtx context.Context) (string, error) {
			<-release
			if fnCtx.Err() != nil {
				return "", fnCtx.Err()
			}
			return "late", nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()

	cancel()
	<-done
	close(release)

	// The detached call still completes and populates the cache.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := c.Get("k"); ok {
			if v != "late" {
				t.Errorf("expected late, got %q", v)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("expected detached call to populate the cache")
}

func TestInFlightStatsMatchUnderlyingCalls(t *testing.T) {
	t.Parallel()

	c := NewInFlight[int]("test_inflight", time.Minute, 10)
	boom := errors.New("boom")
	var calls atomic.Int64

	// Errors are never cached, so every lookup either starts a call or
	// joins one; a lookup counted as joining must never start a call.
	fn := func(context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Microsecond)
		return 0, boom
	}

	const workers, rounds = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, _, err := c.Do(context.Background(), "k", fn); !errors.Is(err, boom) {
					t.Errorf("expected boom, got %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Miss != calls.Load() {
		t.Errorf("expected one miss per underlying call (%d), got %d", calls.Load(), stats.Miss)
	}
	if stats.Hit != stats.InFlightHit {
		t.Errorf("expected every hit to be an in-flight hit, got %+v", stats)
	}
	if total := stats.Hit + stats.Miss; total != workers*rounds {
		t.Errorf("expected %d lookups, got %d", workers*rounds, total)
	}

	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()
	if pending != 0 {
		t.Errorf("expected no pending calls, got %d", pending)
	}
}
