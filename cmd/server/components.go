// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/api"
	"github.com/tomtom215/recoblocks/internal/cache"
	"github.com/tomtom215/recoblocks/internal/config"
	"github.com/tomtom215/recoblocks/internal/feedback"
	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/recommend/reranking"
	"github.com/tomtom215/recoblocks/internal/social"
	"github.com/tomtom215/recoblocks/internal/sources"
	"github.com/tomtom215/recoblocks/internal/supervisor/services"
	"github.com/tomtom215/recoblocks/internal/tickets"
	"github.com/tomtom215/recoblocks/internal/websocket"
)

// components holds everything main wires together.
type components struct {
	engine   *recommend.Engine
	registry *sources.Registry
	tickets  *tickets.Store
	tracking *tickets.TrackingStore
	feedback *feedback.Store

	adapter  *social.Adapter
	worker   *social.Worker
	pubsub   *gochannel.GoChannel
	enqueuer *social.Enqueuer
	consumer *social.Consumer
	store    *cache.BadgerStore
	hub      *websocket.Hub

	handler *api.Handler
	router  http.Handler
}

// newHTTPClient returns the outbound client shared by sources and the social
// adapter. Per-call deadlines come from the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   3 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   3 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// initComponents builds the engine, stores, enrichment pipeline and HTTP
// handler from cfg. On error every resource opened so far is released.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initComponents(cfg *config.Config, client *http.Client, logger zerolog.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close(logger)
		}
	}()

	c.engine, err = recommend.NewEngine(&cfg.Recommend, logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	c.engine.RegisterReranker(reranking.NewScorer())

	c.registry, err = sources.NewRegistry(&cfg.Sources, client, logger)
	if err != nil {
		return nil, fmt.Errorf("create source registry: %w", err)
	}
	if err := c.registry.RegisterAll(c.engine); err != nil {
		return nil, fmt.Errorf("register sources: %w", err)
	}

	c.tickets = tickets.NewStore(logger)
	c.tracking = tickets.NewTrackingStore(0, logger)
	c.engine.SetTrackingSink(c.tracking)

	c.hub = websocket.NewHub(logger)
	c.tickets.SetPatchListener(c.hub)

	c.adapter, err = social.NewAdapter(&cfg.Social, client, logger)
	if err != nil {
		return nil, fmt.Errorf("create social adapter: %w", err)
	}

	var opts []social.WorkerOption
	if cfg.Social.CacheDir != "" {
		c.store, err = cache.OpenBadgerStore(cache.BadgerConfig{
			Path:      cfg.Social.CacheDir,
			KeyPrefix: "social:",
		})
		if err != nil {
			return nil, fmt.Errorf("open social cache: %w", err)
		}
		opts = append(opts, social.WithPersistentCache(c.store))
	}

	fbCfg := feedback.Config{SinkDir: cfg.Recommend.Dogfood.FeedbackSinkDir}
	if c.store != nil {
		fbCfg.Backend = c.store.Namespace("feedback:")
	}
	c.feedback = feedback.NewStore(fbCfg, logger)

	c.worker, err = social.NewWorker(&cfg.Social, c.adapter, c.tickets, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("create social worker: %w", err)
	}

	c.pubsub = social.NewPubSub(cfg.Queue.Buffer, logger)
	c.enqueuer = social.NewEnqueuer(c.pubsub)
	c.consumer = social.NewConsumer(c.pubsub, c.worker, cfg.Queue.JobTimeout, logger)

	c.handler, err = api.NewHandler(api.Dependencies{
		Engine:           c.engine,
		Tickets:          c.tickets,
		Tracking:         c.tracking,
		Sources:          c.registry,
		Feedback:         c.feedback,
		SocialConfigured: cfg.Social.Configured(),
		Social:           c.adapter,
		SocialWorker:     c.worker,
		SocialConsumer:   c.consumer,
		Enqueuer:         c.enqueuer,
		StreamHub:        c.hub,
		StreamOrigins:    cfg.Security.CORSOrigins,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create api handler: %w", err)
	}

	c.router = api.NewRouter(c.handler, middlewareConfig(&cfg.Security)).SetupChi()
	return c, nil
}

// middlewareConfig maps security settings onto the chi middleware config.
func middlewareConfig(sec *config.SecurityConfig) *api.ChiMiddlewareConfig {
	mc := api.DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = append([]string(nil), sec.CORSOrigins...)
	mc.RateLimitRequests = sec.RateLimitReqs
	mc.RateLimitWindow = sec.RateLimitWindow
	mc.RateLimitDisabled = sec.RateLimitDisabled
	return mc
}

// maintenanceTasks returns the periodic housekeeping run by the data layer.
func (c *components) maintenanceTasks() []services.MaintenanceTask {
	tasks := []services.MaintenanceTask{
		{
			Name: "prune-tickets",
			Run: func(context.Context) error {
				c.tickets.Len()
				return nil
			},
		},
		{
			Name: "prune-tracking",
			Run: func(context.Context) error {
				c.tracking.Len()
				return nil
			},
		},
	}
	if c.store != nil {
		tasks = append(tasks, services.MaintenanceTask{
			Name: "badger-gc",
			Run: func(context.Context) error {
				return c.store.RunGC()
			},
		})
	}
	return tasks
}

// close releases the queue and the persistent cache. Safe on a partially
// built value.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (c *components) close(logger zerolog.Logger) {
	if c.pubsub != nil {
		if err := c.pubsub.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing enrichment queue")
		}
	}
	if c.feedback != nil {
		if err := c.feedback.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing feedback store")
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing social cache")
		}
	}
}
