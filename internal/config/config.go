// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/recoblocks/internal/logging"
	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/social"
	"github.com/tomtom215/recoblocks/internal/sources"
)

// Config holds all application configuration loaded from defaults, an
// optional config file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Configuration Categories:
//
//  1. Engine:
//     - Recommend: budget, per-source timeouts, router thresholds, dogfood
//     - Sources: HTTP endpoints of the candidate sources
//
//  2. Enrichment:
//     - Social: social signal service and its limits
//     - Queue: enrichment job handling
//
//  3. Serving:
//     - Server: HTTP listener
//     - Security: rate limiting and CORS
//
//  4. Observability:
//     - Logging: log level and output format
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	engine, err := recommend.NewEngine(&cfg.Recommend, logger)
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Security  SecurityConfig   `koanf:"security"`
	Logging   LoggingConfig    `koanf:"logging"`
	Recommend recommend.Config `koanf:"recommend"`
	Sources   sources.Config   `koanf:"sources"`
	Social    social.Config    `koanf:"social"`
	Queue     QueueConfig      `koanf:"queue"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	Environment     string        `koanf:"environment"` // development, staging or production
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether the server runs in production mode.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// SecurityConfig holds request limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// ToLoggingConfig converts to the logging package configuration.
func (l *LoggingConfig) ToLoggingConfig() logging.Config {
	out := logging.DefaultConfig()
	out.Level = l.Level
	out.Format = l.Format
	out.Caller = l.Caller
	return out
}

// QueueConfig controls the social enrichment queue.
type QueueConfig struct {
	// JobTimeout bounds one enrichment run. Default: 15s.
	JobTimeout time.Duration `koanf:"job_timeout"`

	// Buffer is the in-process channel buffer. Default: 256.
	Buffer int64 `koanf:"buffer"`
}
