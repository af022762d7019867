// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package sources

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tomtom215/recoblocks/internal/breaker"
	"github.com/tomtom215/recoblocks/internal/recommend"
)

// DefaultMaxResponseBytes bounds a source response body.
const DefaultMaxResponseBytes int64 = 8 << 20

// Endpoint is where one named source is served.
type Endpoint struct {
	// URL receives the SourceRequest as a JSON POST.
	URL string `json:"url" koanf:"url"`

	// APIKey is sent as X-API-Key when set.
	APIKey string `json:"-" koanf:"api_key"`
}

// Config holds the HTTP endpoints of the candidate sources.
type Config struct {
	// Endpoints maps source name to endpoint. Sources without an entry are
	// not registered and report source_not_configured.
	Endpoints map[string]Endpoint `json:"endpoints" koanf:"endpoints"`

	// Breaker configures the circuit breaker of every source.
	Breaker breaker.Config `json:"breaker" koanf:"breaker"`

	// MaxResponseBytes caps the response body read from a source.
	// Default: 8 MiB.
	MaxResponseBytes int64 `json:"max_response_bytes" koanf:"max_response_bytes"`
}

// DefaultConfig returns a config with no sources and default breakers.
func DefaultConfig() *Config {
	return &Config{
		Endpoints:        map[string]Endpoint{},
		Breaker:          breaker.DefaultConfig(),
		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

// Normalize trims endpoints and drops the ones without a URL.
func (c *Config) Normalize() {
	out := make(map[string]Endpoint, len(c.Endpoints))
	for name, ep := range c.Endpoints {
		ep.URL = strings.TrimSpace(ep.URL)
		ep.APIKey = strings.TrimSpace(ep.APIKey)
		if ep.URL == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(name))] = ep
	}
	c.Endpoints = out
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
}

// Validate checks every endpoint names a known source and an http(s) URL.
func (c *Config) Validate() error {
	for _, name := range c.Names() {
		if !recommend.IsKnownSource(name) {
			return fmt.Errorf("sources: unknown source %q", name)
		}
		u, err := url.Parse(c.Endpoints[name].URL)
		if err != nil {
			return fmt.Errorf("sources: %s url: %w", name, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("sources: %s url must be http(s) with a host", name)
		}
	}
	if c.Breaker.FailureRatio < 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("sources: breaker failure_ratio must be within [0, 1]")
	}
	return nil
}

// Names returns the configured source names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Endpoints))
	for name := range c.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
