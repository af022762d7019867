// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recoblocks/internal/metrics"
)

var errUpstream = errors.New("upstream failed")
var errClient = errors.New("bad request")

func fail() (int, error) { return 0, errUpstream }

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	b := New[int]("breaker-defaults", Config{FailureRatio: 5}, nil, zerolog.Nop())
	if b.Name() != "breaker-defaults" {
		t.Errorf("expected name breaker-defaults, got %s", b.Name())
	}
	if b.State() != "closed" {
		t.Errorf("expected closed, got %s", b.State())
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("breaker-defaults")); got != 0 {
		t.Errorf("expected state gauge 0, got %v", got)
	}
}

func TestBreaker_Execute(t *testing.T) {
	t.Parallel()

	b := New[int]("breaker-execute", DefaultConfig(), nil, zerolog.Nop())

	got, err := b.Execute(func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("expected 7 and no error, got %d, %v", got, err)
	}

	if _, err := b.Execute(fail); !errors.Is(err, errUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestBreaker_Trips(t *testing.T) {
	t.Parallel()

	cfg := Config{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Minute}
	b := New[int]("breaker-trips", cfg, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(fail)
	}
	if b.State() != "open" {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}

	called := false
	_, err := b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("expected open breaker to skip the call")
	}

	transitions := testutil.ToFloat64(metrics.CircuitBreakerTransitions.WithLabelValues("breaker-trips", "closed", "open"))
	if transitions != 1 {
		t.Errorf("expected 1 closed->open transition, got %v", transitions)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("breaker-trips")); got != 2 {
		t.Errorf("expected state gauge 2, got %v", got)
	}
}

func TestBreaker_IsSuccessfulKeepsClosed(t *testing.T) {
	t.Parallel()

	clientErrorsOK := func(err error) bool { return err == nil || errors.Is(err, errClient) }
	cfg := Config{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute}
	b := New[int]("breaker-client-errors", cfg, clientErrorsOK, zerolog.Nop())

	for i := 0; i < 5; i++ {
		if _, err := b.Execute(func() (int, error) { return 0, errClient }); !errors.Is(err, errClient) {
			t.Fatalf("expected client error passed through, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestStateConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		str   string
		val   float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
		{gobreaker.State(42), "unknown", -1},
	}

	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.str {
			t.Errorf("expected %s, got %s", tt.str, got)
		}
		if got := stateToFloat(tt.state); got != tt.val {
			t.Errorf("expected %v, got %v", tt.val, got)
		}
	}
}
