// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaintenanceInterval is used when MaintenanceConfig.Interval is unset.
const DefaultMaintenanceInterval = time.Minute

// MaintenanceTask is one periodic housekeeping step.
type MaintenanceTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// MaintenanceConfig holds configuration for the maintenance service.
type MaintenanceConfig struct {
	// Interval between runs. Default: 1m.
	Interval time.Duration

	// RunOnStartup runs every task once before the first tick.
	RunOnStartup bool
}

// MaintenanceService runs housekeeping tasks on a fixed interval: pruning
// expired tickets and tracking snapshots when there is no traffic to do it
// lazily, and reclaiming Badger value-log space. A failing task is logged
// and retried on the next tick.
type MaintenanceService struct {
	tasks  []MaintenanceTask
	config MaintenanceConfig
	logger zerolog.Logger
	name   string
}

// NewMaintenanceService creates a maintenance service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMaintenanceService(cfg MaintenanceConfig, logger zerolog.Logger, tasks ...MaintenanceTask) *MaintenanceService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMaintenanceInterval
	}
	return &MaintenanceService{
		tasks:  tasks,
		config: cfg,
		logger: logger.With().Str("service", "maintenance").Logger(),
		name:   "maintenance",
	}
}

// Serve implements suture.Service.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	s.logger.Info().
		Int("tasks", len(s.tasks)).
		Dur("interval", s.config.Interval).
		Msg("maintenance service starting")

	if s.config.RunOnStartup {
		s.runAll(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *MaintenanceService) runAll(ctx context.Context) {
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			s.logger.Warn().Err(err).Str("task", task.Name).Msg("maintenance task failed")
			continue
		}
		s.logger.Debug().
			Str("task", task.Name).
			Dur("duration", time.Since(start)).
			Msg("maintenance task complete")
	}
}

// String returns the service name for logging.
func (s *MaintenanceService) String() string {
	return s.name
}
