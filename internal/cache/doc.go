// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package cache provides the caching layers used around slow upstream calls.

# Overview

  - Cache: thread-safe in-memory TTL map with hit/miss statistics and a
    background sweep (stopped by Close)
  - Store: byte-oriented cache interface with MemoryStore and BadgerStore
    implementations, used to keep social signal results warm across restarts
  - InFlight[T]: request coalescing on top of golang.org/x/sync/singleflight;
    concurrent identical calls share one execution and successful results are
    cached for a TTL with oldest-first eviction

# Keys

HashJSON returns the sha256 of a value's JSON encoding. The social worker uses
it as the input fingerprint that keys both the in-flight and persistent caches:

	hash, err := cache.HashJSON(payload)
	res, fromCache, err := inflight.Do(ctx, hash, fetch)

# Persistence

BadgerStore relies on BadgerDB's native entry TTL, so expired entries are
invisible to Get immediately and reclaimed by RunGC later:

	store, err := cache.OpenBadgerStore(cache.BadgerConfig{Path: "/data/social-cache"})
	if err != nil {
	    return err
	}
	defer store.Close()
*/
package cache
