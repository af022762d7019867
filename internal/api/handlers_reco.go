// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/recoblocks/internal/logging"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/recommend/reranking"
	"github.com/tomtom215/recoblocks/internal/social"
	"github.com/tomtom215/recoblocks/internal/tickets"
)

// RecoBlocks handles POST /api/v1/reco/blocks.
//
// It runs the engine within the request budget, stores the served blocks in
// an async ticket and queues social enrichment for that ticket. The engine
// always answers: source failures surface in diagnostics, not as errors.
func (h *Handler) RecoBlocks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BlocksRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	if !req.hasAnchor() {
		respondAPIError(w, r, http.StatusBadRequest, &models.APIError{
			Code:    "ANCHOR_REQUIRED",
			Message: "anchor.product_id or anchor.name is required",
		})
		return
	}

	ctx := r.Context()
	engineReq := req.toEngineRequest(
		logging.RequestIDFromContext(ctx),
		logging.SessionIDFromContext(ctx),
	)
	result := h.engine.RecoBlocks(ctx, engineReq)
	sanitizeBlocks(result.Competitors, result.RelatedProducts, result.Dupes)

	resp := BlocksResponse{Result: result}
	if req.asyncEnabled() {
		resp.AsyncTicket = h.openTicket(r, &req, &engineReq, result)
	}

	respondSuccess(w, r, http.StatusOK, resp, start)
}

// openTicket stores the served blocks and queues enrichment for them.
func (h *Handler) openTicket(r *http.Request, req *BlocksRequest, engineReq *recommend.Request, result *recommend.Result) *TicketRef {
	cfg := h.engine.Config()
	lockTopN := cfg.Dogfood.LockTopN
	if req.LockTopN != nil {
		lockTopN = *req.LockTopN
	}

	prov := result.Provenance
	ticket := h.tickets.Create(tickets.CreateInput{
		RequestID: engineReq.RequestID,
		CardID:    req.CardID,
		LockTopN:  &lockTopN,
		TTL:       cfg.Dogfood.AsyncPollTTL,
		Payload: tickets.Payload{
			Competitors:     models.CloneCandidates(result.Competitors),
			RelatedProducts: models.CloneCandidates(result.RelatedProducts),
			Dupes:           models.CloneCandidates(result.Dupes),
			Provenance:      prov.Clone(),
		},
	})

	ref := &TicketRef{
		TicketID:  ticket.ID,
		Version:   ticket.Version,
		LockTopN:  ticket.LockTopN,
		ExpiresAt: ticket.ExpiresAt,
		PollURL:   "/api/v1/reco/tickets/" + url.PathEscape(ticket.ID) + "/updates",
	}

	if h.enqueuer == nil || !h.socialConfigured {
		return ref
	}
	anchor := req.Anchor
	job := &social.Job{
		TicketID:  ticket.ID,
		RequestID: engineReq.RequestID,
		Anchor:    &anchor,
		Lang:      models.NormalizeLang(req.Lang),
		Mode:      req.Mode,
	}
	if err := h.enqueuer.Enqueue(r.Context(), job); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to queue social enrichment")
		return ref
	}
	ref.SocialQueued = true
	return ref
}

// TicketUpdates handles GET /api/v1/reco/tickets/{ticketID}/updates?since=N.
func (h *Handler) TicketUpdates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	since, ok := parseIntParam(r.URL.Query().Get("since"), 0)
	if !ok || since < 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", "since must be a non-negative integer", nil)
		return
	}
	if since > tickets.MaxSinceVersion {
		since = tickets.MaxSinceVersion
	}

	updates, err := h.tickets.GetUpdates(chi.URLParam(r, "ticketID"), since)
	if err != nil {
		respondTicketError(w, r, err)
		return
	}
	if p := updates.PayloadPatch; p != nil {
		sanitizeBlocks(p.Competitors, p.RelatedProducts, p.Dupes)
	}
	respondSuccess(w, r, http.StatusOK, updates, start)
}

// TicketPatch handles POST /api/v1/reco/tickets/{ticketID}/patch. It lets a
// trusted producer push a reordered block through the same top-lock rules
// the enrichment worker uses.
func (h *Handler) TicketPatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PatchRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	sanitizeBlocks(req.Candidates)
	res := h.tickets.ApplyPatch(chi.URLParam(r, "ticketID"), req.Block, req.Candidates)
	if res.Reason == tickets.ReasonTicketMissing {
		respondTicketError(w, r, tickets.ErrTicketMissing)
		return
	}
	respondSuccess(w, r, http.StatusOK, res, start)
}

// Tracking handles GET /api/v1/reco/tracking?request_id=&session_id=.
func (h *Handler) Tracking(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := r.URL.Query()
	requestID := strings.TrimSpace(q.Get("request_id"))
	sessionID := strings.TrimSpace(q.Get("session_id"))
	if requestID == "" || sessionID == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMETER", "request_id and session_id are required", nil)
		return
	}

	snap, ok := h.tracking.Snapshot(requestID, sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "TRACKING_NOT_FOUND", "No tracking snapshot for this request", nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, snap, start)
}

func respondTicketError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tickets.ErrTicketMissing) {
		respondAPIError(w, r, http.StatusNotFound, &models.APIError{
			Code:    "TICKET_MISSING",
			Message: "Ticket not found or expired",
		})
		return
	}
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Ticket lookup failed", err)
}

// sanitizeBlocks scrubs user-visible text in place. Every candidate list
// that is stored in a ticket or written to a response passes through it.
func sanitizeBlocks(blocks ...[]models.Candidate) {
	for _, items := range blocks {
		reranking.SanitizeCandidates(items)
	}
}
