// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/tomtom215/recoblocks/internal/api"
	"github.com/tomtom215/recoblocks/internal/config"
	"github.com/tomtom215/recoblocks/internal/logging"
	"github.com/tomtom215/recoblocks/internal/supervisor"
	"github.com/tomtom215/recoblocks/internal/supervisor/services"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // main wires every component in sequence
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.ToLoggingConfig())
	api.Version = version

	logger := logging.Logger()
	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Int64("budget_ms", cfg.Recommend.BudgetMS).
		Bool("dogfood", cfg.Recommend.Dogfood.Enabled).
		Bool("social_configured", cfg.Social.Configured()).
		Msg("Starting Recoblocks with supervisor tree")

	comps, err := initComponents(cfg, newHTTPClient(), logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer comps.close(logger)

	logging.Info().
		Strs("sources", comps.registry.Names()).
		Msg("Candidate sources registered")
	if !cfg.Social.Configured() {
		logging.Warn().Msg("Social source not configured (SOCIAL_SOURCE_BASE_URL empty), enrichment disabled")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           comps.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer
	tree.AddDataService(services.NewMaintenanceService(services.MaintenanceConfig{}, logger, comps.maintenanceTasks()...))

	// Enrichment layer
	tree.AddEnrichmentService(services.NewEnrichmentService(comps.consumer, logger))
	tree.AddEnrichmentService(services.NewWebSocketHubService(comps.hub))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
		stop()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
