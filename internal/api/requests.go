// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"strings"
	"time"

	"github.com/tomtom215/recoblocks/internal/feedback"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/recommend/routing"
)

// BlocksRequest is the body of POST /api/v1/reco/blocks.
//
// Budget and candidate overrides outside their ranges are clamped or
// ignored by the engine rather than rejected here.
type BlocksRequest struct {
	Anchor        models.Anchor   `json:"anchor"`
	Context       map[string]any  `json:"context,omitempty"`
	BudgetMS      int64           `json:"budget_ms,omitempty" validate:"gte=0"`
	RequestID     string          `json:"request_id,omitempty" validate:"omitempty,max=128"`
	SessionID     string          `json:"session_id,omitempty" validate:"omitempty,max=128"`
	CardID        string          `json:"card_id,omitempty" validate:"omitempty,max=128"`
	Mode          string          `json:"mode,omitempty" validate:"omitempty,max=48"`
	Lang          string          `json:"lang,omitempty" validate:"omitempty,lang"`
	OnPageMode    string          `json:"on_page_mode,omitempty" validate:"omitempty,oneof=fallback_only disabled always"`
	MaxCandidates int             `json:"max_candidates,omitempty" validate:"gte=0"`
	RankerA       string          `json:"ranker_a,omitempty" validate:"omitempty,max=64"`
	RankerB       string          `json:"ranker_b,omitempty" validate:"omitempty,max=64"`
	Router        *routing.Config `json:"router,omitempty"`
	LockTopN      *int            `json:"lock_top_n,omitempty" validate:"omitempty,min=0,max=8"`
	Async         *bool           `json:"async,omitempty"`
}

// hasAnchor reports whether the anchor can be looked up at all.
func (b *BlocksRequest) hasAnchor() bool {
	return strings.TrimSpace(b.Anchor.ProductID) != "" || strings.TrimSpace(b.Anchor.Name) != ""
}

// asyncEnabled reports whether a ticket should be created. Default: true.
func (b *BlocksRequest) asyncEnabled() bool {
	return b.Async == nil || *b.Async
}

// toEngineRequest converts the body into an engine request. requestID and
// sessionID are the fallbacks taken from the request headers.
func (b *BlocksRequest) toEngineRequest(requestID, sessionID string) recommend.Request {
	req := recommend.Request{
		Anchor:        b.Anchor,
		Context:       b.Context,
		BudgetMS:      b.BudgetMS,
		RequestID:     firstNonEmpty(b.RequestID, requestID),
		SessionID:     firstNonEmpty(b.SessionID, sessionID),
		Mode:          b.Mode,
		Lang:          b.Lang,
		OnPageMode:    b.OnPageMode,
		MaxCandidates: b.MaxCandidates,
		RankerA:       b.RankerA,
		RankerB:       b.RankerB,
	}
	if b.Router != nil {
		rc := *b.Router
		req.Router = &rc
	}
	return req
}

// TicketRef tells the client how to poll for async updates.
type TicketRef struct {
	TicketID     string    `json:"ticket_id"`
	Version      int       `json:"version"`
	LockTopN     int       `json:"lock_top_n"`
	ExpiresAt    time.Time `json:"expires_at"`
	PollURL      string    `json:"poll_url"`
	SocialQueued bool      `json:"social_queued"`
}

// BlocksResponse is the data of a blocks response.
type BlocksResponse struct {
	*recommend.Result
	AsyncTicket *TicketRef `json:"async_ticket,omitempty"`
}

// PatchRequest is the body of POST /api/v1/reco/tickets/{ticketID}/patch.
type PatchRequest struct {
	Block      string             `json:"block" validate:"required,block"`
	Candidates []models.Candidate `json:"candidates" validate:"required,max=50"`
}

// ClickRequest is the body of POST /api/v1/reco/interleave/click.
type ClickRequest struct {
	AnchorProductID    string `json:"anchor_product_id" validate:"required,max=256"`
	Block              string `json:"block" validate:"required,block"`
	CandidateProductID string `json:"candidate_product_id,omitempty" validate:"required_without=CandidateName,max=256"`
	CandidateName      string `json:"candidate_name,omitempty" validate:"omitempty,max=512"`
	RequestID          string `json:"request_id" validate:"required,max=128"`
	SessionID          string `json:"session_id" validate:"required,max=128"`
	PipelineVersion    string `json:"pipeline_version,omitempty" validate:"omitempty,max=64"`
	CategoryBucket     string `json:"category_bucket,omitempty" validate:"omitempty,max=128"`
	PriceBand          string `json:"price_band,omitempty" validate:"omitempty,max=32"`
	Timestamp          int64  `json:"timestamp,omitempty" validate:"gte=0"`
}

// ClickResponse is the attribution resolved for a click.
type ClickResponse struct {
	Resolved           bool   `json:"resolved"`
	Block              string `json:"block"`
	Attribution        string `json:"attribution"`
	RankPosition       int    `json:"rank_position,omitempty"`
	WasExplorationSlot bool   `json:"was_exploration_slot"`
}

// Employee feedback labels.
const (
	FeedbackRelevant    = "relevant"
	FeedbackNotRelevant = "not_relevant"
	FeedbackWrongBlock  = "wrong_block"
)

// FeedbackRequest is the body of POST /api/v1/reco/employee-feedback.
type FeedbackRequest struct {
	AnchorProductID    string   `json:"anchor_product_id" validate:"required,max=256"`
	Block              string   `json:"block" validate:"required,block"`
	CandidateProductID string   `json:"candidate_product_id,omitempty" validate:"required_without=CandidateName,max=256"`
	CandidateName      string   `json:"candidate_name,omitempty" validate:"omitempty,max=512"`
	FeedbackType       string   `json:"feedback_type" validate:"required,oneof=relevant not_relevant wrong_block"`
	WrongBlockTarget   string   `json:"wrong_block_target,omitempty" validate:"omitempty,block"`
	ReasonTags         []string `json:"reason_tags,omitempty" validate:"omitempty,max=12,dive,min=1,max=64"`
	WasExplorationSlot *bool    `json:"was_exploration_slot,omitempty"`
	RankPosition       int      `json:"rank_position,omitempty" validate:"omitempty,min=1,max=100"`
	PipelineVersion    string   `json:"pipeline_version,omitempty" validate:"omitempty,max=64"`
	SuggestionID       string   `json:"suggestion_id,omitempty" validate:"omitempty,max=128"`
	LLMSuggestedLabel  string   `json:"llm_suggested_label,omitempty" validate:"omitempty,oneof=relevant not_relevant wrong_block"`
	LLMConfidence      *float64 `json:"llm_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	RequestID          string   `json:"request_id,omitempty" validate:"omitempty,max=128"`
	SessionID          string   `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Timestamp          int64    `json:"timestamp,omitempty" validate:"gte=0"`
}

// FeedbackEvent is the recorded form of a FeedbackRequest, with serving
// attribution filled in from the tracking snapshot when available.
type FeedbackEvent = feedback.Event

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
