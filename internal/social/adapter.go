// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/breaker"
	"github.com/tomtom215/recoblocks/internal/limiter"
	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
)

// Fetch failure reasons.
const (
	ReasonDisabled        = "disabled"
	ReasonNotConfigured   = "not_configured"
	ReasonEmptyCandidates = "empty_candidates"
	ReasonRateLimited     = "rate_limited"
	ReasonTimeout         = "timeout"
	ReasonUpstreamError   = "upstream_error"
	ReasonCircuitOpen     = "circuit_open"
)

const (
	// maxResponseBytes bounds the body read from the social service.
	maxResponseBytes = 4 << 20

	minRequestTimeout = 120 * time.Millisecond
)

// FetchResult is the outcome of one social fetch. It never carries an
// error: every failure is reported through Reason.
type FetchResult struct {
	OK            bool                            `json:"ok"`
	Reason        string                          `json:"reason,omitempty"`
	InputHash     string                          `json:"input_hash,omitempty"`
	SignalsByKey  map[string]*models.SocialSignal `json:"signals_by_key"`
	ChannelsUsed  []string                        `json:"channels_used"`
	SourceVersion string                          `json:"source_version"`
	LatencyMS     int64                           `json:"latency_ms,omitempty"`
}

// Fetcher fetches social signals. Adapter is the production Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, in *Input) FetchResult
}

// AdapterStats reports the adapter's protective state.
type AdapterStats struct {
	InFlight     int     `json:"in_flight"`
	Concurrency  int     `json:"concurrency"`
	Tokens       float64 `json:"tokens"`
	RatePerMin   int     `json:"rate_per_min"`
	BreakerState string  `json:"breaker_state"`
}

// statusError is a non-2xx response from the social service.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("social source returned status %d", e.code)
}

// Adapter calls the social signal service. Calls pass, in order, the token
// bucket, the concurrency gate and the circuit breaker.
type Adapter struct {
	cfg     *Config
	client  *http.Client
	bucket  *limiter.TokenBucket
	gate    *limiter.Gate
	breaker *breaker.Breaker[[]byte]
	logger  zerolog.Logger
}

var _ Fetcher = (*Adapter)(nil)

// NewAdapter creates an adapter. A nil cfg uses DefaultConfig; a nil client
// uses a fresh http.Client. Per-call timeouts come from the request
// context, not the client.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAdapter(cfg *Config, client *http.Client, logger zerolog.Logger) (*Adapter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.Channels = append([]string(nil), cfg.Channels...)
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}

	log := logger.With().Str("component", "social_adapter").Logger()
	return &Adapter{
		cfg:     &c,
		client:  client,
		bucket:  limiter.NewTokenBucket("social_source", c.RatePerMin),
		gate:    limiter.NewGate("social_source", c.Concurrency),
		breaker: breaker.New[[]byte]("social-source", breaker.DefaultConfig(), countsAsSuccess, log),
		logger:  log,
	}, nil
}

// Config returns the normalized configuration in use.
func (a *Adapter) Config() Config {
	return *a.cfg
}

// Stats returns the current gate, bucket and breaker state.
func (a *Adapter) Stats() AdapterStats {
	return AdapterStats{
		InFlight:     a.gate.InFlight(),
		Concurrency:  a.gate.Size(),
		Tokens:       a.bucket.Tokens(),
		RatePerMin:   a.bucket.PerMinute(),
		BreakerState: a.breaker.State(),
	}
}

// Fetch requests social signals for in.Candidates.
func (a *Adapter) Fetch(ctx context.Context, in *Input) FetchResult {
	res := FetchResult{
		SignalsByKey:  map[string]*models.SocialSignal{},
		ChannelsUsed:  []string{},
		SourceVersion: a.cfg.SourceVersion,
	}
	fail := func(reason string) FetchResult {
		res.Reason = reason
		metrics.RecordSocialFetch(reason)
		return res
	}

	switch {
	case !a.cfg.Enabled:
		return fail(ReasonDisabled)
	case a.cfg.BaseURL == "":
		return fail(ReasonNotConfigured)
	case in == nil || len(in.Candidates) == 0:
		return fail(ReasonEmptyCandidates)
	}

	req := buildRequest(in, a.cfg)
	res.InputHash = hashRequest(req)

	if err := a.bucket.Take(); err != nil {
		return fail(ReasonRateLimited)
	}

	release, err := a.gate.Acquire(ctx)
	if err != nil {
		return fail(ReasonTimeout)
	}
	defer release()

	timeout := a.cfg.Timeout
	if in.Timeout > 0 {
		timeout = clampDuration(in.Timeout, minRequestTimeout, MaxTimeout)
	}

	start := time.Now()
	body, err := a.breaker.Execute(func() ([]byte, error) {
		return a.post(ctx, &req, timeout)
	})
	res.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		reason := classify(err)
		a.logger.Warn().
			Err(err).
			Bool("timeout", reason == ReasonTimeout).
			Int64("latency_ms", res.LatencyMS).
			Msg("social fetch failed")
		return fail(reason)
	}

	normalized, err := normalizeResponse(body, in.Candidates)
	if err != nil {
		a.logger.Warn().Err(err).Msg("social response rejected")
		return fail(ReasonUpstreamError)
	}

	res.OK = true
	res.SignalsByKey = normalized.SignalsByKey
	res.ChannelsUsed = normalized.ChannelsUsed
	if res.ChannelsUsed == nil {
		res.ChannelsUsed = []string{}
	}
	if normalized.SourceVersion != "" {
		res.SourceVersion = normalized.SourceVersion
	}
	metrics.RecordSocialFetch("ok")
	a.logger.Debug().
		Int("signals", len(res.SignalsByKey)).
		Int64("latency_ms", res.LatencyMS).
		Msg("social fetch completed")
	return res
}

func (a *Adapter) post(ctx context.Context, req *signalRequest, timeout time.Duration) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode social request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build social request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("X-API-Key", a.cfg.APIKey)
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read social response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}

// countsAsSuccess keeps client errors from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code < 500
}

// classify maps a fetch error to its reason. 4xx responses keep their
// status code; 5xx responses are plain upstream errors.
func classify(err error) string {
	if errors.Is(err, breaker.ErrOpen) {
		return ReasonCircuitOpen
	}
	var se *statusError
	if errors.As(err, &se) {
		if se.code >= 400 && se.code < 500 {
			return fmt.Sprintf("upstream_%d", se.code)
		}
		return ReasonUpstreamError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonUpstreamError
}
