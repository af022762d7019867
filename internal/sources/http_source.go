// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/breaker"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend"
)

// StatusError is returned for a non-2xx source response.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Source, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Source, e.Code, e.Body)
}

// HTTPSource serves one named candidate source over HTTP.
type HTTPSource struct {
	name     string
	endpoint Endpoint
	client   *http.Client
	maxBytes int64
	breaker  *breaker.Breaker[*models.SourceResult]
	logger   zerolog.Logger
}

var _ recommend.Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source for name. A nil client uses a fresh
// http.Client; the engine bounds every call through its context.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPSource(name string, ep Endpoint, cfg *Config, client *http.Client, logger zerolog.Logger) (*HTTPSource, error) {
	if !recommend.IsKnownSource(name) {
		return nil, fmt.Errorf("%w: %q", recommend.ErrUnknownSource, name)
	}
	if ep.URL == "" {
		return nil, fmt.Errorf("sources: %s has no url", name)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if client == nil {
		client = &http.Client{}
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}

	log := logger.With().Str("component", "source").Str("source", name).Logger()
	return &HTTPSource{
		name:     name,
		endpoint: ep,
		client:   client,
		maxBytes: maxBytes,
		breaker:  breaker.New[*models.SourceResult]("source_"+name, cfg.Breaker, countsAsSuccess, log),
		logger:   log,
	}, nil
}

// Name returns the source name.
func (s *HTTPSource) Name() string {
	return s.name
}

// BreakerState returns the state of the source's circuit breaker.
func (s *HTTPSource) BreakerState() string {
	return s.breaker.State()
}

// Fetch posts req to the source endpoint and decodes its result.
func (s *HTTPSource) Fetch(ctx context.Context, req models.SourceRequest) (*models.SourceResult, error) {
	res, err := s.breaker.Execute(func() (*models.SourceResult, error) {
		return s.post(ctx, &req)
	})
	if err != nil {
		s.logger.Debug().Err(err).Bool("retry", req.Retry).Msg("source call failed")
		return nil, err
	}
	return res, nil
}

func (s *HTTPSource) post(ctx context.Context, req *models.SourceRequest) (*models.SourceResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.endpoint.APIKey != "" {
		httpReq.Header.Set("X-API-Key", s.endpoint.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{Source: s.name, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var result models.SourceResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, s.maxBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// countsAsSuccess keeps client errors and caller cancellation from tripping
// the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code < 500
}
