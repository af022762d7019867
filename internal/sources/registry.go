// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package sources

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/recommend"
)

// SourceRegistrar is the part of the engine sources are bound to.
type SourceRegistrar interface {
	RegisterSource(name string, src recommend.Source) error
}

var _ SourceRegistrar = (*recommend.Engine)(nil)

// Registry holds one HTTPSource per configured endpoint.
type Registry struct {
	names   []string
	sources map[string]*HTTPSource
}

// NewRegistry builds the sources named in cfg. A nil cfg yields an empty
// registry.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRegistry(cfg *Config, client *http.Client, logger zerolog.Logger) (*Registry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Registry{sources: make(map[string]*HTTPSource, len(c.Endpoints))}
	for _, name := range c.Names() {
		src, err := NewHTTPSource(name, c.Endpoints[name], &c, client, logger)
		if err != nil {
			return nil, err
		}
		r.names = append(r.names, name)
		r.sources[name] = src
	}
	return r, nil
}

// Names returns the configured source names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (*HTTPSource, bool) {
	src, ok := r.sources[name]
	return src, ok
}

// RegisterAll binds every source to e.
func (r *Registry) RegisterAll(e SourceRegistrar) error {
	for _, name := range r.names {
		if err := e.RegisterSource(name, r.sources[name]); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

// BreakerStates returns the circuit breaker state per source.
func (r *Registry) BreakerStates() map[string]string {
	out := make(map[string]string, len(r.sources))
	for name, src := range r.sources {
		out[name] = src.BreakerState()
	}
	return out
}
