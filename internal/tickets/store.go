// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package tickets

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
)

// ErrTicketMissing is returned for unknown or expired tickets.
var ErrTicketMissing = errors.New("ticket_missing")

// Ticket limits.
const (
	DefaultLockTopN = 3
	MaxLockTopN     = 12
	DefaultTTL      = 10 * time.Minute
	MinTTL          = 5 * time.Second
	MaxTTL          = time.Hour
	MaxSinceVersion = 1_000_000
)

// Patch reasons reported when a patch is not applied.
const (
	ReasonTicketMissing = "ticket_missing"
	ReasonInvalidBlock  = "invalid_block"
	ReasonNoChange      = "no_change"
)

// Payload is the per-card snapshot a ticket holds.
type Payload struct {
	Competitors     []models.Candidate `json:"competitors"`
	RelatedProducts []models.Candidate `json:"related_products"`
	Dupes           []models.Candidate `json:"dupes"`
	Provenance      *models.Provenance `json:"provenance,omitempty"`
}

// Block returns the candidates of the named block.
func (p *Payload) Block(name string) []models.Candidate {
	switch name {
	case models.BlockCompetitors:
		return p.Competitors
	case models.BlockRelated:
		return p.RelatedProducts
	case models.BlockDupes:
		return p.Dupes
	default:
		return nil
	}
}

func (p *Payload) setBlock(name string, items []models.Candidate) {
	switch name {
	case models.BlockCompetitors:
		p.Competitors = items
	case models.BlockRelated:
		p.RelatedProducts = items
	case models.BlockDupes:
		p.Dupes = items
	}
}

// Clone returns a deep copy of the payload.
func (p *Payload) Clone() Payload {
	return Payload{
		Competitors:     models.CloneCandidates(p.Competitors),
		RelatedProducts: models.CloneCandidates(p.RelatedProducts),
		Dupes:           models.CloneCandidates(p.Dupes),
		Provenance:      p.Provenance.Clone(),
	}
}

// UpdateLogEntry records one applied patch.
type UpdateLogEntry struct {
	Version      int       `json:"version"`
	Block        string    `json:"block"`
	ChangedCount int       `json:"changed_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Ticket is the mutable async state of one rendered card.
type Ticket struct {
	ID        string           `json:"ticket_id"`
	RequestID string           `json:"request_id,omitempty"`
	CardID    string           `json:"card_id,omitempty"`
	LockTopN  int              `json:"lock_top_n"`
	Payload   Payload          `json:"payload"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Updates   []UpdateLogEntry `json:"updates"`
}

// CreateInput describes a new ticket. A nil LockTopN and a zero TTL use
// the defaults.
type CreateInput struct {
	RequestID string
	CardID    string
	LockTopN  *int
	Payload   Payload
	TTL       time.Duration
}

// PatchResult is the outcome of ApplyPatch.
type PatchResult struct {
	Applied      bool   `json:"applied"`
	Reason       string `json:"reason,omitempty"`
	Version      int    `json:"version"`
	ChangedCount int    `json:"changed_count"`
}

// PayloadPatch is the full current state returned to a polling client.
type PayloadPatch struct {
	Competitors     []models.Candidate `json:"competitors"`
	RelatedProducts []models.Candidate `json:"related_products"`
	Dupes           []models.Candidate `json:"dupes"`
	Provenance      *models.Provenance `json:"provenance,omitempty"`
}

// Updates is the poll response for a ticket.
type Updates struct {
	Version      int           `json:"version"`
	HasUpdate    bool          `json:"has_update"`
	ExpiresAt    time.Time     `json:"expires_at"`
	PayloadPatch *PayloadPatch `json:"payload_patch,omitempty"`
}

// PatchListener is told about every applied patch. It is called after the
// store lock is released and must not block.
type PatchListener interface {
	TicketPatched(ticketID, block string, result PatchResult)
}

// Store holds async update tickets in memory. Expired tickets are pruned
// lazily on access. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	tickets  map[string]*Ticket
	listener PatchListener
	now      func() time.Time
	logger   zerolog.Logger
}

// NewStore creates an empty ticket store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		tickets: make(map[string]*Ticket),
		now:     time.Now,
		logger:  logger.With().Str("component", "tickets").Logger(),
	}
}

// Create stores a new ticket at version 1 and returns a copy of it.
//
//nolint:gocritic // hugeParam: input passed by value for immutability
func (s *Store) Create(in CreateInput) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	lock := DefaultLockTopN
	if in.LockTopN != nil {
		lock = clampInt(*in.LockTopN, 0, MaxLockTopN)
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	ttl = clampDuration(ttl, MinTTL, MaxTTL)

	t := &Ticket{
		ID:        uuid.New().String(),
		RequestID: strings.TrimSpace(in.RequestID),
		CardID:    strings.TrimSpace(in.CardID),
		LockTopN:  lock,
		Payload:   in.Payload.Clone(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
		Updates:   []UpdateLogEntry{},
	}
	s.tickets[t.ID] = t

	metrics.TicketsCreated.Inc()
	metrics.TicketsActive.Set(float64(len(s.tickets)))
	s.logger.Debug().
		Str("ticket_id", t.ID).
		Str("request_id", t.RequestID).
		Int("lock_top_n", lock).
		Msg("ticket created")

	return t.clone()
}

// Get returns a copy of the ticket.
func (s *Store) Get(id string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	t, ok := s.tickets[strings.TrimSpace(id)]
	if !ok {
		return Ticket{}, ErrTicketMissing
	}
	return t.clone(), nil
}

// SetPatchListener registers l for applied patches. Nil disables
// notification.
func (s *Store) SetPatchListener(l PatchListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// ApplyPatch replaces the candidates of block with next, keeping the
// identities of the first LockTopN existing entries in place. A patch that
// changes neither identity order nor content is a no-op.
func (s *Store) ApplyPatch(id, block string, next []models.Candidate) PatchResult {
	id, block = strings.TrimSpace(id), strings.TrimSpace(block)

	s.mu.Lock()
	res := s.applyPatchLocked(id, block, next)
	listener := s.listener
	s.mu.Unlock()

	if res.Applied && listener != nil {
		listener.TicketPatched(id, block, res)
	}
	return res
}

func (s *Store) applyPatchLocked(id, block string, next []models.Candidate) PatchResult {
	now := s.now()
	s.pruneLocked(now)

	t, ok := s.tickets[id]
	if !ok {
		metrics.RecordTicketPatch(ReasonTicketMissing)
		return PatchResult{Reason: ReasonTicketMissing}
	}
	if !models.IsValidBlock(block) {
		metrics.RecordTicketPatch(ReasonInvalidBlock)
		return PatchResult{Reason: ReasonInvalidBlock, Version: t.Version}
	}

	existing := t.Payload.Block(block)
	reordered := ReorderWithTopLock(existing, next, t.LockTopN)

	if !changed(existing, reordered) {
		t.UpdatedAt = now
		metrics.RecordTicketPatch(ReasonNoChange)
		return PatchResult{Reason: ReasonNoChange, Version: t.Version}
	}

	changedCount := len(existing)
	if len(reordered) > changedCount {
		changedCount = len(reordered)
	}

	t.Payload.setBlock(block, models.CloneCandidates(reordered))
	t.Version++
	t.UpdatedAt = now
	t.Updates = append(t.Updates, UpdateLogEntry{
		Version:      t.Version,
		Block:        block,
		ChangedCount: changedCount,
		Timestamp:    now,
	})

	metrics.RecordTicketPatch("applied")
	s.logger.Debug().
		Str("ticket_id", t.ID).
		Str("block", block).
		Int("version", t.Version).
		Int("changed_count", changedCount).
		Msg("ticket patched")

	return PatchResult{Applied: true, Version: t.Version, ChangedCount: changedCount}
}

// UpdateProvenance applies fn to the ticket provenance. It does not bump
// the version; the change is delivered with the next applied patch.
func (s *Store) UpdateProvenance(id string, fn func(p *models.Provenance)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	t, ok := s.tickets[strings.TrimSpace(id)]
	if !ok {
		return ErrTicketMissing
	}
	if t.Payload.Provenance == nil {
		t.Payload.Provenance = &models.Provenance{}
	}
	fn(t.Payload.Provenance)
	return nil
}

// GetUpdates reports whether the ticket moved past since. When it did, the
// full current payload is returned.
func (s *Store) GetUpdates(id string, since int) (Updates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	t, ok := s.tickets[strings.TrimSpace(id)]
	if !ok {
		return Updates{}, ErrTicketMissing
	}

	since = clampInt(since, 0, MaxSinceVersion)
	out := Updates{Version: t.Version, ExpiresAt: t.ExpiresAt}
	if since >= t.Version {
		return out, nil
	}

	p := t.Payload.Clone()
	out.HasUpdate = true
	out.PayloadPatch = &PayloadPatch{
		Competitors:     p.Competitors,
		RelatedProducts: p.RelatedProducts,
		Dupes:           p.Dupes,
		Provenance:      p.Provenance,
	}
	return out, nil
}

// Len returns the number of unexpired tickets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.tickets)
}

// pruneLocked must be called with mu held.
func (s *Store) pruneLocked(now time.Time) {
	removed := 0
	for id, t := range s.tickets {
		if !t.ExpiresAt.After(now) {
			delete(s.tickets, id)
			removed++
		}
	}
	if removed > 0 {
		metrics.TicketsActive.Set(float64(len(s.tickets)))
		s.logger.Debug().Int("expired", removed).Msg("pruned expired tickets")
	}
}

// ReorderWithTopLock merges next into existing. The first lockTopN
// positions keep the identity of the existing entries, refreshed with the
// matching entry of next when present. Remaining next entries follow in
// order, then leftover existing entries past the lock window.
func ReorderWithTopLock(existing, next []models.Candidate, lockTopN int) []models.Candidate {
	lockN := clampInt(lockTopN, 0, MaxLockTopN)
	if lockN == 0 {
		return models.CloneCandidates(next)
	}

	nextByKey := make(map[string]*models.Candidate, len(next))
	for i := range next {
		key := models.CandidateKey(&next[i], i)
		if _, dup := nextByKey[key]; dup {
			continue
		}
		nextByKey[key] = &next[i]
	}

	if lockN > len(existing) {
		lockN = len(existing)
	}

	out := make([]models.Candidate, 0, len(existing)+len(next))
	placed := make(map[string]struct{}, len(existing)+len(next))
	for i := 0; i < lockN; i++ {
		key := models.CandidateKey(&existing[i], i)
		if fresh, ok := nextByKey[key]; ok {
			out = append(out, fresh.Clone())
		} else {
			out = append(out, existing[i].Clone())
		}
		placed[key] = struct{}{}
	}

	for i := range next {
		key := models.CandidateKey(&next[i], i)
		if _, ok := placed[key]; ok {
			continue
		}
		placed[key] = struct{}{}
		out = append(out, next[i].Clone())
	}

	for i := lockN; i < len(existing); i++ {
		key := models.CandidateKey(&existing[i], i)
		if _, ok := placed[key]; ok {
			continue
		}
		placed[key] = struct{}{}
		out = append(out, existing[i].Clone())
	}

	return out
}

// changed compares identity order first, then serialized content.
func changed(existing, reordered []models.Candidate) bool {
	if len(existing) != len(reordered) {
		return true
	}
	if len(existing) == 0 {
		return false
	}
	for i := range existing {
		if models.CandidateKey(&existing[i], i) != models.CandidateKey(&reordered[i], i) {
			return true
		}
	}
	a, errA := json.Marshal(existing)
	b, errB := json.Marshal(reordered)
	if errA != nil || errB != nil {
		return true
	}
	return !bytes.Equal(a, b)
}

func (t *Ticket) clone() Ticket {
	out := *t
	out.Payload = t.Payload.Clone()
	out.Updates = append([]UpdateLogEntry{}, t.Updates...)
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
