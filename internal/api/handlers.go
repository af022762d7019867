// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/feedback"
	"github.com/tomtom215/recoblocks/internal/middleware"
	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/social"
	"github.com/tomtom215/recoblocks/internal/sources"
	"github.com/tomtom215/recoblocks/internal/tickets"
	ws "github.com/tomtom215/recoblocks/internal/websocket"
)

// DefaultMaxBodyBytes bounds request bodies when Dependencies leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// JobEnqueuer queues social enrichment for a ticket.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *social.Job) error
}

// Dependencies are the collaborators a Handler serves from. Engine, Tickets
// and Tracking are required; the social pieces and Sources are optional.
// A nil Feedback store is replaced by an in-memory one.
type Dependencies struct {
	Engine   *recommend.Engine
	Tickets  *tickets.Store
	Tracking *tickets.TrackingStore
	Sources  *sources.Registry
	Feedback *feedback.Store

	SocialConfigured bool
	Social           *social.Adapter
	SocialWorker     *social.Worker
	SocialConsumer   *social.Consumer
	Enqueuer         JobEnqueuer

	// StreamHub serves ticket update streams when set. StreamOrigins lists
	// the browser origins allowed to open one ("*" allows any).
	StreamHub     *ws.Hub
	StreamOrigins []string

	PerfMon      *middleware.PerformanceMonitor
	MaxBodyBytes int64
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_reco.go: blocks, ticket and tracking endpoints
//   - handlers_dogfood.go: interleave click and employee feedback
//   - handlers_health.go: health and stats endpoints
//   - handlers_stream.go: ticket update websocket
type Handler struct {
	engine   *recommend.Engine
	tickets  *tickets.Store
	tracking *tickets.TrackingStore
	sources  *sources.Registry
	feedback *feedback.Store

	socialConfigured bool
	social           *social.Adapter
	socialWorker     *social.Worker
	socialConsumer   *social.Consumer
	enqueuer         JobEnqueuer

	streamHub     *ws.Hub
	streamOrigins []string

	perfMon      *middleware.PerformanceMonitor
	maxBodyBytes int64
	startTime    time.Time
	now          func() time.Time
	logger       zerolog.Logger
}

// NewHandler creates a handler. The engine and both stores are required.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps Dependencies, logger zerolog.Logger) (*Handler, error) {
	if deps.Engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if deps.Tickets == nil || deps.Tracking == nil {
		return nil, errors.New("api: ticket and tracking stores are required")
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Feedback == nil {
		deps.Feedback = feedback.NewStore(feedback.Config{}, logger)
	}
	if deps.PerfMon == nil {
		deps.PerfMon = middleware.NewPerformanceMonitor(middleware.DefaultPerformanceSamples, middleware.DefaultSlowRequest, logger)
	}

	return &Handler{
		engine:           deps.Engine,
		tickets:          deps.Tickets,
		tracking:         deps.Tracking,
		sources:          deps.Sources,
		feedback:         deps.Feedback,
		socialConfigured: deps.SocialConfigured,
		social:           deps.Social,
		socialWorker:     deps.SocialWorker,
		socialConsumer:   deps.SocialConsumer,
		enqueuer:         deps.Enqueuer,
		streamHub:        deps.StreamHub,
		streamOrigins:    append([]string(nil), deps.StreamOrigins...),
		perfMon:          deps.PerfMon,
		maxBodyBytes:     deps.MaxBodyBytes,
		startTime:        time.Now(),
		now:              time.Now,
		logger:           logger.With().Str("component", "api").Logger(),
	}, nil
}

// dogfood reports whether dogfood-only endpoints are served.
func (h *Handler) dogfood() bool {
	return h.engine.Config().Dogfood.Enabled
}
