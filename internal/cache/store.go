// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package cache

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned by a Store after Close.
var ErrStoreClosed = errors.New("cache store closed")

// Store is a byte-oriented key/value cache with per-entry TTL. Memory and
// BadgerDB implementations exist so warm results can survive restarts.
type Store interface {
	// Get returns the value and true when present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// MemoryStore implements Store on top of Cache.
type MemoryStore struct {
	cache *Cache
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory Store whose entries default to ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: New(ttl)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 100 * 365 * 24 * time.Hour
	}
	m.cache.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Stats returns the underlying cache statistics.
func (m *MemoryStore) Stats() Stats {
	return m.cache.GetStats()
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.cache.Close()
	return nil
}
