// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package limiter

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/recoblocks/internal/metrics"
)

// ErrRateLimited is returned by TokenBucket.Take when no token is available.
var ErrRateLimited = errors.New("rate_limited")

// TokenBucket is a non-blocking per-minute rate limiter. Capacity equals the
// per-minute rate and the bucket starts full.
type TokenBucket struct {
	name      string
	perMinute int
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewTokenBucket creates a bucket refilling perMinute tokens per minute.
// Rates below 1 are raised to 1.
func NewTokenBucket(name string, perMinute int) *TokenBucket {
	return newTokenBucketWithClock(name, perMinute, time.Now)
}

func newTokenBucketWithClock(name string, perMinute int, now func() time.Time) *TokenBucket {
	if perMinute < 1 {
		perMinute = 1
	}
	return &TokenBucket{
		name:      name,
		perMinute: perMinute,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		now:       now,
	}
}

// Take consumes one token or returns ErrRateLimited.
func (b *TokenBucket) Take() error {
	if b.limiter.AllowN(b.now(), 1) {
		return nil
	}
	metrics.RateLimited.WithLabelValues(b.name).Inc()
	return ErrRateLimited
}

// Tokens returns the number of tokens currently available.
func (b *TokenBucket) Tokens() float64 {
	return b.limiter.TokensAt(b.now())
}

// PerMinute returns the configured rate.
func (b *TokenBucket) PerMinute() int {
	return b.perMinute
}
