// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/recoblocks/internal/feedback"
	"github.com/tomtom215/recoblocks/internal/logging"
	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
)

// InterleaveClick handles POST /api/v1/reco/interleave/click.
//
// The click is attributed to the ranker that placed the candidate, looked
// up in the tracking snapshot of the serving request. Unknown clicks are
// counted as "both".
func (h *Handler) InterleaveClick(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dogfood() {
		respondError(w, http.StatusNotFound, "DOGFOOD_DISABLED", "Dogfood mode is disabled", nil)
		return
	}

	var req ClickRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	resp := ClickResponse{Block: req.Block, Attribution: models.AttributionBoth}
	entry, ok := h.tracking.Get(req.RequestID, req.SessionID, req.Block, req.CandidateProductID, req.CandidateName)
	if ok {
		resp.Resolved = true
		resp.Attribution = entry.Attribution
		resp.RankPosition = entry.RankPosition
		resp.WasExplorationSlot = entry.WasExplorationSlot
	}

	metrics.RecordInterleaveClick(req.Block, resp.Attribution)
	logging.Ctx(r.Context()).Info().
		Str("anchor_product_id", sanitizeLogValue(req.AnchorProductID)).
		Str("block", req.Block).
		Str("attribution", resp.Attribution).
		Bool("resolved", resp.Resolved).
		Bool("was_exploration_slot", resp.WasExplorationSlot).
		Int("rank_position", resp.RankPosition).
		Msg("Interleave click")

	respondSuccess(w, r, http.StatusOK, resp, start)
}

// maxReasonTags caps the normalized reason tags kept per label.
const maxReasonTags = 12

// EmployeeFeedback handles POST /api/v1/reco/employee-feedback.
//
// The latest label per session, anchor, block and candidate is kept in the
// feedback store; every submission is also logged and counted. Serving
// attribution is filled in from tracking when the client omitted it.
func (h *Handler) EmployeeFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dogfood() {
		respondError(w, http.StatusNotFound, "DOGFOOD_DISABLED", "Dogfood mode is disabled", nil)
		return
	}

	var req FeedbackRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	if req.WrongBlockTarget != "" && req.FeedbackType != FeedbackWrongBlock {
		respondAPIError(w, r, http.StatusBadRequest, &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "wrong_block_target is only allowed with feedback_type wrong_block",
			Details: map[string]interface{}{"field": "wrong_block_target"},
		})
		return
	}

	event := h.feedbackEvent(&req)
	metrics.RecordEmployeeFeedback(event.Block, event.FeedbackType)

	changed, err := h.feedback.Record(r.Context(), &event)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("key", feedback.Key(&event)).Msg("Failed to store employee feedback")
	}

	logging.Ctx(r.Context()).Info().
		Str("event_id", event.EventID).
		Bool("replaced", changed).
		Str("anchor_product_id", sanitizeLogValue(event.AnchorProductID)).
		Str("block", event.Block).
		Str("feedback_type", event.FeedbackType).
		Str("wrong_block_target", event.WrongBlockTarget).
		Strs("reason_tags", event.ReasonTags).
		Str("attribution", event.Attribution).
		Bool("was_exploration_slot", event.WasExplorationSlot).
		Int("rank_position", event.RankPosition).
		Msg("Employee feedback")

	respondSuccess(w, r, http.StatusCreated, event, start)
}

func (h *Handler) feedbackEvent(req *FeedbackRequest) FeedbackEvent {
	event := FeedbackEvent{
		EventID:            uuid.NewString(),
		AnchorProductID:    strings.TrimSpace(req.AnchorProductID),
		Block:              req.Block,
		CandidateProductID: strings.TrimSpace(req.CandidateProductID),
		CandidateName:      strings.TrimSpace(req.CandidateName),
		FeedbackType:       req.FeedbackType,
		WrongBlockTarget:   req.WrongBlockTarget,
		ReasonTags:         normalizeTags(req.ReasonTags),
		RankPosition:       req.RankPosition,
		RequestID:          req.RequestID,
		SessionID:          req.SessionID,
		RecordedAt:         h.now().UTC(),
	}
	if req.WasExplorationSlot != nil {
		event.WasExplorationSlot = *req.WasExplorationSlot
	}

	if req.RequestID == "" || req.SessionID == "" {
		return event
	}
	entry, ok := h.tracking.Get(req.RequestID, req.SessionID, req.Block, req.CandidateProductID, req.CandidateName)
	if !ok {
		return event
	}
	event.Attribution = entry.Attribution
	if req.WasExplorationSlot == nil {
		event.WasExplorationSlot = entry.WasExplorationSlot
	}
	if event.RankPosition == 0 {
		event.RankPosition = entry.RankPosition
	}
	return event
}

// normalizeTags lowercases, trims and de-duplicates reason tags, keeping at
// most maxReasonTags.
func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, tag := range in {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == maxReasonTags {
			break
		}
	}
	return out
}
