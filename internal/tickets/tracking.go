// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package tickets

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Tracking snapshot lifetimes.
const (
	DefaultTrackingTTL = 24 * time.Hour
	MinTrackingTTL     = time.Minute
	MaxTrackingTTL     = 7 * 24 * time.Hour
)

// TrackingSnapshot is the served attribution of one request and session.
type TrackingSnapshot struct {
	RequestID       string                 `json:"request_id"`
	SessionID       string                 `json:"session_id"`
	AnchorProductID string                 `json:"anchor_product_id,omitempty"`
	ByBlock         models.TrackingByBlock `json:"by_block"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ExpiresAt       time.Time              `json:"expires_at"`
}

// TrackingStore keeps tracking snapshots keyed by request and session id.
// It implements recommend.TrackingSink.
type TrackingStore struct {
	mu        sync.Mutex
	snapshots map[string]*TrackingSnapshot
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewTrackingStore creates a tracking store. A zero ttl uses
// DefaultTrackingTTL; other values are clamped to [1m, 7d].
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrackingStore(ttl time.Duration, logger zerolog.Logger) *TrackingStore {
	if ttl == 0 {
		ttl = DefaultTrackingTTL
	}
	return &TrackingStore{
		snapshots: make(map[string]*TrackingSnapshot),
		ttl:       clampDuration(ttl, MinTrackingTTL, MaxTrackingTTL),
		now:       time.Now,
		logger:    logger.With().Str("component", "tracking").Logger(),
	}
}

func trackingKey(requestID, sessionID string) string {
	return strings.TrimSpace(requestID) + "::" + strings.TrimSpace(sessionID)
}

// Put records byBlock for the request and session. Blocks already present
// in an unexpired snapshot are replaced; other blocks are kept.
func (s *TrackingStore) Put(requestID, sessionID, anchorProductID string, byBlock models.TrackingByBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	key := trackingKey(requestID, sessionID)
	snap, ok := s.snapshots[key]
	if !ok {
		snap = &TrackingSnapshot{
			RequestID: strings.TrimSpace(requestID),
			SessionID: strings.TrimSpace(sessionID),
			ByBlock:   make(models.TrackingByBlock, len(models.Blocks)),
			CreatedAt: now,
		}
		s.snapshots[key] = snap
	}
	if id := strings.TrimSpace(anchorProductID); id != "" {
		snap.AnchorProductID = id
	}

	for _, block := range models.Blocks {
		entries, ok := byBlock[block]
		if !ok {
			continue
		}
		snap.ByBlock[block] = sanitizeTracking(entries)
	}
	snap.UpdatedAt = now
	snap.ExpiresAt = now.Add(s.ttl)

	s.logger.Debug().
		Str("request_id", snap.RequestID).
		Str("session_id", snap.SessionID).
		Msg("tracking snapshot stored")
}

// Get returns the tracking entry of a served candidate. The lookup key is
// the lowercased product id, else the name. An exact key match wins;
// otherwise the first key, in sorted order, containing the lookup key is
// used.
func (s *TrackingStore) Get(requestID, sessionID, block, productID, name string) (models.TrackingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap, ok := s.snapshots[trackingKey(requestID, sessionID)]
	if !ok {
		return models.TrackingEntry{}, false
	}
	entries := snap.ByBlock[strings.TrimSpace(block)]

	lookup := strings.TrimSpace(productID)
	if lookup == "" {
		lookup = strings.TrimSpace(name)
	}
	lookup = strings.ToLower(lookup)
	if lookup == "" {
		return models.TrackingEntry{}, false
	}

	if entry, ok := entries[lookup]; ok {
		return entry, true
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, lookup) {
			return entries[k], true
		}
	}
	return models.TrackingEntry{}, false
}

// Snapshot returns a copy of the snapshot for the request and session.
func (s *TrackingStore) Snapshot(requestID, sessionID string) (TrackingSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap, ok := s.snapshots[trackingKey(requestID, sessionID)]
	if !ok {
		return TrackingSnapshot{}, false
	}
	out := *snap
	out.ByBlock = make(models.TrackingByBlock, len(snap.ByBlock))
	for block, entries := range snap.ByBlock {
		cp := make(models.BlockTracking, len(entries))
		for k, v := range entries {
			cp[k] = v
		}
		out.ByBlock[block] = cp
	}
	return out, true
}

// Len returns the number of unexpired snapshots.
func (s *TrackingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.snapshots)
}

// pruneLocked must be called with mu held.
func (s *TrackingStore) pruneLocked(now time.Time) {
	for key, snap := range s.snapshots {
		if !snap.ExpiresAt.After(now) {
			delete(s.snapshots, key)
		}
	}
}

// sanitizeTracking lowercases keys, drops empty ones, clamps ranks to at
// least 1 and maps unknown attributions to both.
func sanitizeTracking(in models.BlockTracking) models.BlockTracking {
	out := make(models.BlockTracking, len(in))
	for rawKey, entry := range in {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if key == "" {
			continue
		}
		if entry.RankPosition < 1 {
			entry.RankPosition = 1
		}
		if !models.IsValidAttribution(entry.Attribution) {
			entry.Attribution = models.AttributionBoth
		}
		out[key] = entry
	}
	return out
}
