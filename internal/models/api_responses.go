// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

import (
	"time"
)

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status is "success" (see Data) or "error" (see Error).
//
//	{
//	  "status": "success",
//	  "data": {"competitors": [...], "related_products": [...], "dupes": [...]},
//	  "metadata": {"timestamp": "2026-02-01T12:00:00Z", "query_time_ms": 412}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries timing and request correlation for a response.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - NOT_FOUND: unknown ticket or snapshot
//   - RATE_LIMIT_EXCEEDED: too many requests
//   - INTERNAL_ERROR: unexpected failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the body of GET /api/v1/health.
//
// Status is "healthy", or "degraded" when a source or the social service
// circuit breaker is open.
type HealthStatus struct {
	Status            string            `json:"status"`
	Version           string            `json:"version"`
	Uptime            float64           `json:"uptime_seconds"`
	DogfoodMode       bool              `json:"dogfood_mode"`
	RequestsServed    int64             `json:"requests_served"`
	ActiveTickets     int               `json:"active_tickets"`
	TrackingSnapshots int               `json:"tracking_snapshots"`
	SourcesConfigured []string          `json:"sources_configured"`
	SourceBreakers    map[string]string `json:"source_breakers"`
	SocialConfigured  bool              `json:"social_configured"`
	SocialBreaker     string            `json:"social_breaker,omitempty"`
}
