// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/recoblocks/internal/metrics"
)

// Gate bounds concurrent work. It is safe for concurrent use.
type Gate struct {
	name     string
	size     int
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// NewGate creates a gate admitting at most size holders. Sizes below 1 are
// raised to 1.
func NewGate(name string, size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{
		name: name,
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func must be called exactly once on success; extra calls are no-ops.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return func() {}, fmt.Errorf("gate %s: %w", g.name, err)
	}
	g.inFlight.Add(1)
	metrics.GateInFlight.WithLabelValues(g.name).Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			metrics.GateInFlight.WithLabelValues(g.name).Dec()
			g.sem.Release(1)
		})
	}, nil
}

// TryAcquire takes a slot only if one is free right now.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		return func() {}, false
	}
	g.inFlight.Add(1)
	metrics.GateInFlight.WithLabelValues(g.name).Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			metrics.GateInFlight.WithLabelValues(g.name).Dec()
			g.sem.Release(1)
		})
	}, true
}

// InFlight returns the current number of holders.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Size returns the gate capacity.
func (g *Gate) Size() int {
	return g.size
}
