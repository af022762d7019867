// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package config provides centralized configuration management for Recoblocks.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file (CONFIG_PATH, else config.yaml or /etc/recoblocks/config.yaml),
then environment variables. Only mapped environment variables are read.

# Environment Variables

HTTP Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8787)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT
  - HTTP_SHUTDOWN_TIMEOUT: Graceful shutdown bound (default: 10s)
  - HTTP_MAX_BODY_BYTES: Request body cap (default: 1MiB)
  - ENVIRONMENT: development, staging or production

Security (SecurityConfig):
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW: Per-IP limit (default: 600/1m)
  - DISABLE_RATE_LIMIT: Turn per-IP limiting off
  - CORS_ORIGINS: Comma-separated origins (default: *)

Engine (recommend.Config):
  - RECO_BUDGET_MS: Request budget (default: 1200, range 120-12000)
  - RECO_MAX_CANDIDATES: Served candidates per block (default: 4)
  - RECO_RETRY_GRACE_MS: Extra time for retrying a timed-out source
  - RECO_ON_PAGE_MODE: fallback_only, disabled or always
  - RECO_TIMEOUT_<SOURCE>_MS: Per-source timeout
  - RECO_TAU_CAT, RECO_TAU_DUPE, RECO_TAU_PRICE_DUPE: Router thresholds
  - RECO_DOGFOOD_MODE: Enable dogfood pools, interleave and exploration
  - RECO_DOGFOOD_EXPLORATION_RATE, RECO_DOGFOOD_EXPLORATION_MAX_ITEMS
  - RECO_INTERLEAVE_ENABLED, RECO_INTERLEAVE_RANKER_A, RECO_INTERLEAVE_RANKER_B
  - RECO_DOGFOOD_UI_LOCK_TOP_N: Stable leading items (0-8)
  - RECO_ASYNC_POLL_TTL: Ticket lifetime (default: 10m)
  - RECO_FEEDBACK_JSONL_SINK_DIR: Daily JSONL file of employee feedback

Sources (sources.Config):
  - RECO_SOURCE_<SOURCE>_URL, RECO_SOURCE_<SOURCE>_API_KEY
  - RECO_SOURCE_BREAKER_TIMEOUT, RECO_SOURCE_BREAKER_MIN_REQUESTS,
    RECO_SOURCE_BREAKER_FAILURE_RATIO

Social (social.Config):
  - SOCIAL_SOURCE_ENABLED, SOCIAL_SOURCE_BASE_URL, SOCIAL_SOURCE_PATH
  - SOCIAL_SOURCE_API_KEY
  - SOCIAL_SOURCE_TIMEOUT (default: 1.8s), SOCIAL_SOURCE_TTL (default: 72h)
  - SOCIAL_SOURCE_CONCURRENCY, SOCIAL_SOURCE_RATE_PER_MIN
  - SOCIAL_SOURCE_CHANNELS: Comma-separated channel whitelist
  - SOCIAL_SOURCE_CACHE_DIR: Badger directory for persisted results

Queue (QueueConfig):
  - RECO_ENRICH_JOB_TIMEOUT (default: 15s), RECO_ENRICH_BUFFER (default: 256)

Logging (LoggingConfig):
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal(err)
	}
	logging.Init(cfg.Logging.ToLoggingConfig())
*/
package config
