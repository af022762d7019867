// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package limiter provides the concurrency and rate controls used in front
// of outbound calls.
//
//   - Gate bounds the number of concurrent holders. Waiters are admitted in
//     FIFO order and stop waiting when their context is done.
//   - TokenBucket admits calls at a per-minute rate with a burst equal to
//     that rate. It never blocks; an empty bucket yields ErrRateLimited.
//
// Typical use around an upstream call:
//
//	if err := bucket.Take(); err != nil {
//		return status("rate_limited")
//	}
//	release, err := gate.Acquire(ctx)
//	if err != nil {
//		return status("timeout")
//	}
//	defer release()
package limiter
