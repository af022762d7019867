// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// EnrichmentConsumer runs until its context is done. Satisfied by
// *social.Consumer.
type EnrichmentConsumer interface {
	Run(ctx context.Context) error
}

// EnrichmentService supervises the social enrichment consumer. A consumer
// that stops while the context is still live is reported as a failure so
// suture restarts it.
type EnrichmentService struct {
	consumer EnrichmentConsumer
	logger   zerolog.Logger
	name     string
}

// NewEnrichmentService creates the enrichment service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEnrichmentService(consumer EnrichmentConsumer, logger zerolog.Logger) *EnrichmentService {
	return &EnrichmentService{
		consumer: consumer,
		logger:   logger.With().Str("service", "social-enrichment").Logger(),
		name:     "social-enrichment",
	}
}

// Serve implements suture.Service.
func (s *EnrichmentService) Serve(ctx context.Context) error {
	s.logger.Info().Msg("enrichment consumer starting")

	err := s.consumer.Run(ctx)
	if ctx.Err() != nil {
		s.logger.Info().Msg("enrichment consumer shutting down")
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("consumer stopped")
	}
	s.logger.Warn().Err(err).Msg("enrichment consumer stopped unexpectedly")
	return fmt.Errorf("social enrichment: %w", err)
}

// String returns the service name for logging.
func (s *EnrichmentService) String() string {
	return s.name
}
