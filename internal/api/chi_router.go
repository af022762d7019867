// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/recoblocks/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware config uses the defaults.
func NewRouter(handler *Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/latency", router.handler.HealthLatency)
	})

	// One limiter shared by the general reco routes.
	apiLimit := router.chiMiddleware.RateLimit()

	r.Route("/api/v1/reco", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics)
			r.Use(router.handler.perfMon.Middleware)

			r.With(apiLimit).Post("/blocks", router.handler.RecoBlocks)
			r.With(apiLimit).Get("/tracking", router.handler.Tracking)
			r.With(apiLimit).Get("/social/stats", router.handler.SocialStats)

			r.With(router.chiMiddleware.RateLimitPoll()).Get("/tickets/{ticketID}/updates", router.handler.TicketUpdates)
			r.With(apiLimit).Post("/tickets/{ticketID}/patch", router.handler.TicketPatch)

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitFeedback())
				r.Post("/interleave/click", router.handler.InterleaveClick)
				r.Post("/employee-feedback", router.handler.EmployeeFeedback)
			})
		})

		// Long-lived; kept out of the latency middleware.
		r.With(apiLimit).Get("/tickets/{ticketID}/stream", router.handler.TicketStream)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
