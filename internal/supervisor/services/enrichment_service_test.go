// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// mockConsumer blocks until canceled unless err or stopEarly is set.
type mockConsumer struct {
	runs      atomic.Int32
	err       error
	stopEarly bool
}

func (m *mockConsumer) Run(ctx context.Context) error {
	m.runs.Add(1)
	if m.err != nil {
		return m.err
	}
	if m.stopEarly {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEnrichmentService_Interface(t *testing.T) {
	var _ suture.Service = (*EnrichmentService)(nil)
}

func TestEnrichmentService_String(t *testing.T) {
	svc := NewEnrichmentService(&mockConsumer{}, zerolog.Nop())
	if got := svc.String(); got != "social-enrichment" {
		t.Errorf("String() = %q, want %q", got, "social-enrichment")
	}
}

func TestEnrichmentService_Serve(t *testing.T) {
	t.Run("returns context error on cancellation", func(t *testing.T) {
		consumer := &mockConsumer{}
		svc := NewEnrichmentService(consumer, zerolog.Nop())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if consumer.runs.Load() != 1 {
			t.Errorf("expected 1 run, got %d", consumer.runs.Load())
		}
	})

	t.Run("wraps consumer failure", func(t *testing.T) {
		subscribeErr := errors.New("subscribe failed")
		svc := NewEnrichmentService(&mockConsumer{err: subscribeErr}, zerolog.Nop())

		err := svc.Serve(context.Background())
		if !errors.Is(err, subscribeErr) {
			t.Errorf("expected wrapped subscribe error, got %v", err)
		}
	})

	t.Run("early stop is a failure", func(t *testing.T) {
		svc := NewEnrichmentService(&mockConsumer{stopEarly: true}, zerolog.Nop())

		if err := svc.Serve(context.Background()); err == nil {
			t.Error("expected error when the consumer stops on a live context")
		}
	})
}

func TestEnrichmentService_RestartedBySupervisor(t *testing.T) {
	consumer := &mockConsumer{stopEarly: true}
	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewEnrichmentService(consumer, zerolog.Nop()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	errCh := sup.ServeBackground(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-errCh

	if consumer.runs.Load() < 2 {
		t.Errorf("expected consumer to be restarted, got %d runs", consumer.runs.Load())
	}
}
