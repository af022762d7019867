// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/social"
	"github.com/tomtom215/recoblocks/internal/sources"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recoblocks/config.yaml",
	"/etc/recoblocks/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8787,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			Environment:     "development",
		},
		Security: SecurityConfig{
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Recommend: *recommend.DefaultConfig(),
		Sources:   *sources.DefaultConfig(),
		Social:    *social.DefaultConfig(),
		Queue: QueueConfig{
			JobTimeout: social.DefaultJobTimeout,
			Buffer:     social.DefaultQueueBuffer,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables (highest priority)
	// RECO_BUDGET_MS -> recommend.budget_ms
	// SOCIAL_SOURCE_BASE_URL -> social.base_url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.Social.Normalize()
	cfg.Sources.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"social.channels",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = buildEnvMappings()

func buildEnvMappings() map[string]string {
	m := map[string]string{
		// Server mappings
		"http_port":             "server.port",
		"http_host":             "server.host",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_idle_timeout":     "server.idle_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"http_max_body_bytes":   "server.max_body_bytes",
		"environment":           "server.environment",

		// Security mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Engine mappings
		"reco_budget_ms":                     "recommend.budget_ms",
		"reco_max_candidates":                "recommend.max_candidates",
		"reco_retry_grace_ms":                "recommend.retry_grace_ms",
		"reco_on_page_mode":                  "recommend.on_page_mode",
		"reco_tau_cat":                       "recommend.router.tau_cat",
		"reco_tau_dupe":                      "recommend.router.tau_dupe",
		"reco_tau_price_dupe":                "recommend.router.tau_price_dupe",
		"reco_allow_same_brand_competitors":  "recommend.router.allow_same_brand_competitors",
		"reco_allow_same_brand_dupes":        "recommend.router.allow_same_brand_dupes",
		"reco_pool_competitors":              "recommend.pool_size.competitors",
		"reco_pool_related_products":         "recommend.pool_size.related_products",
		"reco_pool_dupes":                    "recommend.pool_size.dupes",
		"reco_dogfood_mode":                  "recommend.dogfood.enabled",
		"reco_dogfood_pool_competitors":      "recommend.dogfood.pool_size.competitors",
		"reco_dogfood_pool_related_products": "recommend.dogfood.pool_size.related_products",
		"reco_dogfood_pool_dupes":            "recommend.dogfood.pool_size.dupes",
		"reco_dogfood_exploration_enabled":   "recommend.dogfood.exploration.enabled",
		"reco_dogfood_exploration_rate":      "recommend.dogfood.exploration.rate_per_block",
		"reco_dogfood_exploration_max_items": "recommend.dogfood.exploration.max_explore_items",
		"reco_interleave_enabled":            "recommend.dogfood.interleave.enabled",
		"reco_interleave_ranker_a":           "recommend.dogfood.interleave.ranker_a",
		"reco_interleave_ranker_b":           "recommend.dogfood.interleave.ranker_b",
		"reco_dogfood_ui_lock_top_n":         "recommend.dogfood.lock_top_n",
		"reco_async_poll_ttl":                "recommend.dogfood.async_poll_ttl",
		"reco_feedback_jsonl_sink_dir":       "recommend.dogfood.feedback_sink_dir",

		// Source breaker mappings
		"reco_source_breaker_timeout":       "sources.breaker.timeout",
		"reco_source_breaker_min_requests":  "sources.breaker.min_requests",
		"reco_source_breaker_failure_ratio": "sources.breaker.failure_ratio",

		// Social source mappings
		"social_source_enabled":           "social.enabled",
		"social_source_base_url":          "social.base_url",
		"social_source_path":              "social.path",
		"social_source_api_key":           "social.api_key",
		"social_source_timeout":           "social.timeout",
		"social_source_ttl":               "social.ttl",
		"social_source_concurrency":       "social.concurrency",
		"social_source_rate_per_min":      "social.rate_per_min",
		"social_source_channels":          "social.channels",
		"social_source_version":           "social.source_version",
		"social_source_cache_max_entries": "social.cache_max_entries",
		"social_source_cache_dir":         "social.cache_dir",

		// Queue mappings
		"reco_enrich_job_timeout": "queue.job_timeout",
		"reco_enrich_buffer":      "queue.buffer",
	}

	// Per-source endpoint and timeout mappings:
	// RECO_SOURCE_CATALOG_ANN_URL -> sources.endpoints.catalog_ann.url
	// RECO_TIMEOUT_CATALOG_ANN_MS -> recommend.timeouts_ms.catalog_ann
	for _, name := range recommend.SourceNames {
		m["reco_source_"+name+"_url"] = "sources.endpoints." + name + ".url"
		m["reco_source_"+name+"_api_key"] = "sources.endpoints." + name + ".api_key"
		m["reco_timeout_"+name+"_ms"] = "recommend.timeouts_ms." + name
	}
	return m
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return an empty string and are skipped, so unrelated
// environment variables never pollute the config.
//
// Examples:
//   - RECO_BUDGET_MS -> recommend.budget_ms
//   - RECO_DOGFOOD_MODE -> recommend.dogfood.enabled
//   - SOCIAL_SOURCE_BASE_URL -> social.base_url
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
