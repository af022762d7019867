// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/recoblocks/internal/middleware"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/social"
)

const breakerOpen = "open"

// Health handles health check requests
//
// @Summary Get service health
// @Description Returns engine counters, store sizes and circuit breaker states. Status is degraded while any breaker is open.
// @Tags Core
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus} "Health status retrieved successfully"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, r, http.StatusOK, h.healthStatus(), start)
}

func (h *Handler) healthStatus() models.HealthStatus {
	status := models.HealthStatus{
		Status:            "healthy",
		Version:           Version,
		Uptime:            time.Since(h.startTime).Seconds(),
		DogfoodMode:       h.dogfood(),
		RequestsServed:    h.engine.RequestCount(),
		ActiveTickets:     h.tickets.Len(),
		TrackingSnapshots: h.tracking.Len(),
		SourcesConfigured: []string{},
		SourceBreakers:    map[string]string{},
		SocialConfigured:  h.socialConfigured,
	}

	if h.sources != nil {
		status.SourcesConfigured = h.sources.Names()
		status.SourceBreakers = h.sources.BreakerStates()
	}
	for _, state := range status.SourceBreakers {
		if state == breakerOpen {
			status.Status = "degraded"
		}
	}

	if h.social != nil {
		status.SocialBreaker = h.social.Stats().BreakerState
		if status.SocialBreaker == breakerOpen {
			status.Status = "degraded"
		}
	}
	return status
}

// HealthLive handles liveness check requests
//
// @Summary Liveness check
// @Tags Core
// @Produce json
// @Success 200 {object} models.APIResponse "Service is alive"
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthLatency returns per-route latency percentiles from recent requests.
//
// @Summary Route latency statistics
// @Tags Core
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]middleware.RouteStats}
// @Router /health/latency [get]
func (h *Handler) HealthLatency(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, r, http.StatusOK, h.GetPerformanceStats(), start)
}

// GetPerformanceStats returns the performance monitor statistics.
func (h *Handler) GetPerformanceStats() []middleware.RouteStats {
	if h.perfMon == nil {
		return []middleware.RouteStats{}
	}
	return h.perfMon.Stats()
}

// SocialStatsResponse is the body of GET /api/v1/reco/social/stats.
type SocialStatsResponse struct {
	Configured bool                  `json:"configured"`
	Adapter    *social.AdapterStats  `json:"adapter,omitempty"`
	Worker     *social.Stats         `json:"worker,omitempty"`
	Consumer   *social.ConsumerStats `json:"consumer,omitempty"`
}

// SocialStats reports the state of the social gate, cache and queue.
func (h *Handler) SocialStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resp := SocialStatsResponse{Configured: h.socialConfigured}
	if h.social != nil {
		stats := h.social.Stats()
		resp.Adapter = &stats
	}
	if h.socialWorker != nil {
		stats := h.socialWorker.Stats()
		resp.Worker = &stats
	}
	if h.socialConsumer != nil {
		stats := h.socialConsumer.Stats()
		resp.Consumer = &stats
	}
	respondSuccess(w, r, http.StatusOK, resp, start)
}
