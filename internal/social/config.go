// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Adapter bounds.
const (
	DefaultPath          = "/v1/social/signals"
	DefaultSourceVersion = "social_source_adapter.v1"

	DefaultTimeout = 1800 * time.Millisecond
	MinTimeout     = 180 * time.Millisecond
	MaxTimeout     = 12 * time.Second

	DefaultTTL = 72 * time.Hour
	MinTTL     = 5 * time.Minute
	MaxTTL     = 14 * 24 * time.Hour

	DefaultConcurrency = 8
	MaxConcurrency     = 64

	DefaultRatePerMin = 120
	MaxRatePerMin     = 5000

	DefaultCacheMaxEntries = 500
)

// Config configures the social signal adapter and the enrichment worker.
type Config struct {
	// Enabled turns the adapter on. Default: true.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// BaseURL of the social signal service. Empty means not configured.
	BaseURL string `json:"base_url" koanf:"base_url"`

	// Path is appended to BaseURL. Default: /v1/social/signals.
	Path string `json:"path" koanf:"path"`

	// APIKey is sent as X-API-Key and as a bearer token.
	APIKey string `json:"-" koanf:"api_key"`

	// Timeout bounds one fetch. Default: 1.8s. Range: [180ms, 12s].
	Timeout time.Duration `json:"timeout" koanf:"timeout"`

	// TTL is how long fetched signals are reused and considered fresh.
	// Default: 72h. Range: [5m, 14d].
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// Concurrency bounds in-flight fetches. Default: 8. Range: [1, 64].
	Concurrency int `json:"concurrency" koanf:"concurrency"`

	// RatePerMin is the token bucket size and refill rate.
	// Default: 120. Range: [1, 5000].
	RatePerMin int `json:"rate_per_min" koanf:"rate_per_min"`

	// Channels requested from the service, canonical names only.
	Channels []string `json:"channels" koanf:"channels"`

	// SourceVersion is reported when the service does not send one.
	SourceVersion string `json:"source_version" koanf:"source_version"`

	// CacheMaxEntries bounds the fetch cache. Default: 500.
	CacheMaxEntries int `json:"cache_max_entries" koanf:"cache_max_entries"`

	// CacheDir enables a persistent signal cache on disk when set.
	CacheDir string `json:"cache_dir" koanf:"cache_dir"`
}

// DefaultConfig returns the default social configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Path:            DefaultPath,
		Timeout:         DefaultTimeout,
		TTL:             DefaultTTL,
		Concurrency:     DefaultConcurrency,
		RatePerMin:      DefaultRatePerMin,
		Channels:        append([]string(nil), models.SocialChannels...),
		SourceVersion:   DefaultSourceVersion,
		CacheMaxEntries: DefaultCacheMaxEntries,
	}
}

// Normalize fills empty values with defaults and clamps the rest into
// range. Environment-provided values are forgiving; Validate is strict only
// about things that cannot be repaired.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Path = normalizePath(c.Path)
	c.APIKey = strings.TrimSpace(c.APIKey)

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	c.Timeout = clampDuration(c.Timeout, MinTimeout, MaxTimeout)
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	c.TTL = clampDuration(c.TTL, MinTTL, MaxTTL)
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	c.Concurrency = clampInt(c.Concurrency, 1, MaxConcurrency)
	if c.RatePerMin == 0 {
		c.RatePerMin = DefaultRatePerMin
	}
	c.RatePerMin = clampInt(c.RatePerMin, 1, MaxRatePerMin)
	c.Channels = normalizeChannels(c.Channels)

	c.SourceVersion = strings.TrimSpace(c.SourceVersion)
	if c.SourceVersion == "" {
		c.SourceVersion = DefaultSourceVersion
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = DefaultCacheMaxEntries
	}
}

// Validate checks the configuration after Normalize.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("social.base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("social.base_url must be http or https, got %q", c.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("social.base_url has no host: %q", c.BaseURL)
		}
	}
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("social.timeout must be between %v and %v, got %v", MinTimeout, MaxTimeout, c.Timeout)
	}
	if c.TTL < MinTTL || c.TTL > MaxTTL {
		return fmt.Errorf("social.ttl must be between %v and %v, got %v", MinTTL, MaxTTL, c.TTL)
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("social.concurrency must be between 1 and %d, got %d", MaxConcurrency, c.Concurrency)
	}
	if c.RatePerMin < 1 || c.RatePerMin > MaxRatePerMin {
		return fmt.Errorf("social.rate_per_min must be between 1 and %d, got %d", MaxRatePerMin, c.RatePerMin)
	}
	return nil
}

// Configured reports whether fetches can be attempted at all.
func (c *Config) Configured() bool {
	return c.Enabled && c.BaseURL != ""
}

// Endpoint returns the full signal URL.
func (c *Config) Endpoint() string {
	return c.BaseURL + c.Path
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// normalizeChannels keeps whitelisted channels. An empty result falls back
// to the full whitelist.
func normalizeChannels(raw []string) []string {
	out := models.NormalizeSocialChannels(raw, len(models.SocialChannels))
	if len(out) == 0 {
		return append([]string(nil), models.SocialChannels...)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
