// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package breaker wraps sony/gobreaker with the metrics and logging every
// outbound dependency shares.
//
// The breaker uses real time for its interval and open timeout. Tests that
// need a tripped breaker drive it with failures rather than a fake clock.
package breaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/recoblocks/internal/metrics"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit_open")

// Config controls when a breaker opens and how it recovers.
type Config struct {
	// MaxRequests admitted while half-open. Default: 3.
	MaxRequests uint32 `json:"max_requests" koanf:"max_requests"`

	// Interval after which closed-state counts reset. Default: 1m.
	Interval time.Duration `json:"interval" koanf:"interval"`

	// Timeout spent open before probing again. Default: 30s.
	Timeout time.Duration `json:"timeout" koanf:"timeout"`

	// MinRequests needed before the failure ratio is considered. Default: 10.
	MinRequests uint32 `json:"min_requests" koanf:"min_requests"`

	// FailureRatio at or above which the breaker opens. Default: 0.6.
	FailureRatio float64 `json:"failure_ratio" koanf:"failure_ratio"`
}

// DefaultConfig returns the default breaker settings.
func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker is a named circuit breaker returning T.
type Breaker[T any] struct {
	name         string
	cb           *gobreaker.CircuitBreaker[T]
	isSuccessful func(error) bool
	logger       zerolog.Logger
}

// New creates a breaker. isSuccessful decides whether an error counts as a
// failure; nil means every error does.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New[T any](name string, cfg Config, isSuccessful func(error) bool, logger zerolog.Logger) *Breaker[T] {
	def := DefaultConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = def.FailureRatio
	}

	b := &Breaker[T]{
		name:         name,
		isSuccessful: isSuccessful,
		logger:       logger.With().Str("component", "breaker").Str("breaker", name).Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: isSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				b.logger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info().Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
	return b
}

// Execute runs fn through the breaker. A rejected call returns an error
// wrapping ErrOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return result, fmt.Errorf("%s: %w", b.name, ErrOpen)
		}
		outcome := "failure"
		if b.isSuccessful != nil && b.isSuccessful(err) {
			outcome = "success"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, outcome).Inc()
		return result, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// Name returns the breaker name.
func (b *Breaker[T]) Name() string {
	return b.name
}

// State returns "closed", "half-open" or "open".
func (b *Breaker[T]) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
