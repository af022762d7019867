// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package feedback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/cache"
)

// DefaultRetention is how long the latest label per key is kept.
const DefaultRetention = 7 * 24 * time.Hour

// Event is one recorded employee label, with serving attribution filled in
// when it was known.
type Event struct {
	EventID            string    `json:"event_id"`
	AnchorProductID    string    `json:"anchor_product_id"`
	Block              string    `json:"block"`
	CandidateProductID string    `json:"candidate_product_id,omitempty"`
	CandidateName      string    `json:"candidate_name,omitempty"`
	FeedbackType       string    `json:"feedback_type"`
	WrongBlockTarget   string    `json:"wrong_block_target,omitempty"`
	ReasonTags         []string  `json:"reason_tags"`
	Attribution        string    `json:"attribution,omitempty"`
	WasExplorationSlot bool      `json:"was_exploration_slot"`
	RankPosition       int       `json:"rank_position,omitempty"`
	RequestID          string    `json:"request_id,omitempty"`
	SessionID          string    `json:"session_id,omitempty"`
	RecordedAt         time.Time `json:"recorded_at"`
}

// Key returns the dedupe key of e. Missing parts read as "unknown", and the
// candidate name stands in for a missing product id.
func Key(e *Event) string {
	candidate := e.CandidateProductID
	if candidate == "" {
		candidate = e.CandidateName
	}
	return strings.Join([]string{
		orUnknown(e.SessionID),
		orUnknown(e.AnchorProductID),
		orUnknown(e.Block),
		orUnknown(candidate),
	}, "::")
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

// sameLabel compares everything but the per-submission id and timestamp.
func sameLabel(a, b *Event) bool {
	return a.FeedbackType == b.FeedbackType &&
		a.WrongBlockTarget == b.WrongBlockTarget &&
		slices.Equal(a.ReasonTags, b.ReasonTags) &&
		a.Attribution == b.Attribution &&
		a.WasExplorationSlot == b.WasExplorationSlot &&
		a.RankPosition == b.RankPosition &&
		a.RequestID == b.RequestID
}

// Config configures a Store.
type Config struct {
	// Backend holds the latest label per key. Nil uses a MemoryStore.
	Backend cache.Store

	// Retention bounds how long a label is kept. Default: 7d.
	Retention time.Duration

	// SinkDir receives the daily JSONL file. Empty disables it.
	SinkDir string
}

// Store keeps the latest employee label per key.
type Store struct {
	mu        sync.Mutex
	backend   cache.Store
	owned     bool
	retention time.Duration
	sinkDir   string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewStore creates a feedback store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	s := &Store{
		backend:   cfg.Backend,
		retention: cfg.Retention,
		sinkDir:   strings.TrimSpace(cfg.SinkDir),
		now:       time.Now,
		logger:    logger.With().Str("component", "feedback").Logger(),
	}
	if s.backend == nil {
		s.backend = cache.NewMemoryStore(cfg.Retention)
		s.owned = true
	}
	return s
}

// Record stores e as the latest label for its key and reports whether the
// stored entry changed. A resubmitted identical label keeps the first
// entry. Backend errors are returned after the sink row is written.
func (s *Store) Record(ctx context.Context, e *Event) (bool, error) {
	key := Key(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.replaceLocked(ctx, key, e)
	if s.sinkDir != "" {
		if sinkErr := s.appendSinkLocked(e); sinkErr != nil {
			s.logger.Warn().Err(sinkErr).Str("dir", s.sinkDir).Msg("Employee feedback sink write failed")
		}
	}
	return changed, err
}

func (s *Store) replaceLocked(ctx context.Context, key string, e *Event) (bool, error) {
	prev, ok, err := s.latest(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && sameLabel(prev, e) {
		return false, nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode feedback: %w", err)
	}
	if err := s.backend.Set(ctx, key, data, s.retention); err != nil {
		return false, fmt.Errorf("store feedback: %w", err)
	}
	return true, nil
}

// Latest returns the stored label for key.
func (s *Store) Latest(ctx context.Context, key string) (*Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest(ctx, key)
}

func (s *Store) latest(ctx context.Context, key string) (*Event, bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("decode feedback: %w", err)
	}
	return &e, true, nil
}

// sinkRow is one line of the JSONL file.
type sinkRow struct {
	Source     string    `json:"source"`
	EventName  string    `json:"event_name"`
	ReceivedAt time.Time `json:"server_received_at"`
	Properties *Event    `json:"properties"`
}

func (s *Store) appendSinkLocked(e *Event) error {
	now := s.now().UTC()
	line, err := json.Marshal(sinkRow{
		Source:     "recoblocks_dogfood",
		EventName:  "reco_employee_feedback",
		ReceivedAt: now,
		Properties: e,
	})
	if err != nil {
		return fmt.Errorf("encode sink row: %w", err)
	}
	if err := os.MkdirAll(s.sinkDir, 0o750); err != nil {
		return fmt.Errorf("create sink dir: %w", err)
	}

	name := filepath.Join(s.sinkDir, "recoblocks-employee-feedback-"+now.Format("2006-01-02")+".jsonl")
	//nolint:gosec // path is built from configuration and a date
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open sink file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sink file: %w", err)
	}
	return f.Close()
}

// Close releases the backend when the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.backend.Close()
}
