// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/recoblocks/internal/cache"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/reranking"
)

// requestSource identifies this service to the social backend.
const requestSource = "recoblocks"

type requestAnchor struct {
	ProductID   string   `json:"product_id,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Name        string   `json:"name,omitempty"`
	Category    string   `json:"category,omitempty"`
	Ingredients []string `json:"ingredients"`
	SkinFit     []string `json:"skin_fit"`
}

type requestSocialSummary struct {
	Themes        []string `json:"themes"`
	TopKeywords   []string `json:"top_keywords"`
	SentimentHint string   `json:"sentiment_hint,omitempty"`
	VolumeBucket  string   `json:"volume_bucket,omitempty"`
}

type requestCandidate struct {
	CandidateKey       string               `json:"candidate_key"`
	ProductID          string               `json:"product_id,omitempty"`
	SKUID              string               `json:"sku_id,omitempty"`
	Brand              string               `json:"brand,omitempty"`
	Name               string               `json:"name,omitempty"`
	Category           string               `json:"category,omitempty"`
	PriceBand          string               `json:"price_band,omitempty"`
	SourceType         string               `json:"source_type,omitempty"`
	WhySummary         string               `json:"why_summary,omitempty"`
	ReasonsUserVisible []string             `json:"reasons_user_visible"`
	SocialSummary      requestSocialSummary `json:"social_summary_user_visible"`
	EvidenceDisplay    []string             `json:"evidence_display"`
}

type requestMeta struct {
	Source        string `json:"source"`
	SourceVersion string `json:"source_version"`
}

// signalRequest is the body POSTed to the social service. Its JSON
// encoding is also the cache identity of a fetch.
type signalRequest struct {
	Anchor      requestAnchor      `json:"anchor"`
	Candidates  []requestCandidate `json:"candidates"`
	Lang        string             `json:"lang"`
	Channels    []string           `json:"channels"`
	RequestMeta requestMeta        `json:"request_meta"`
}

// Input is one fetch of social signals for a set of candidates.
type Input struct {
	Anchor     *models.Anchor
	Candidates []models.Candidate
	Lang       string
	// Channels overrides the configured channels when non-empty.
	Channels []string
	// Timeout overrides the configured timeout when positive.
	Timeout time.Duration
}

func buildRequest(in *Input, cfg *Config) signalRequest {
	channels := cfg.Channels
	if len(in.Channels) > 0 {
		channels = in.Channels
	}
	req := signalRequest{
		Anchor:     sanitizeAnchor(in.Anchor),
		Candidates: make([]requestCandidate, 0, len(in.Candidates)),
		Lang:       models.NormalizeLang(in.Lang),
		Channels:   normalizeChannels(channels),
		RequestMeta: requestMeta{
			Source:        requestSource,
			SourceVersion: cfg.SourceVersion,
		},
	}
	for i := range in.Candidates {
		req.Candidates = append(req.Candidates, sanitizeCandidate(&in.Candidates[i], i))
	}
	return req
}

// InputHash returns the hex SHA-256 of the request that in would produce.
// Identical inputs hash identically.
func InputHash(in *Input, cfg *Config) string {
	return hashRequest(buildRequest(in, cfg))
}

//nolint:gocritic // hugeParam: hashed once per fetch
func hashRequest(req signalRequest) string {
	hash, err := cache.HashJSON(req)
	if err != nil {
		return ""
	}
	return hash
}

// CandidateKey is the key signals are matched on: the lowercased product
// id, sku id, url or name, else idx:<index>.
func CandidateKey(c *models.Candidate, idx int) string {
	return truncate(models.CandidateKey(c, idx), 220)
}

func sanitizeAnchor(a *models.Anchor) requestAnchor {
	if a == nil {
		return requestAnchor{Ingredients: []string{}, SkinFit: []string{}}
	}
	return requestAnchor{
		ProductID:   sanitizeText(a.ProductID, 120),
		Brand:       sanitizeText(firstNonEmpty(a.Brand, a.BrandID), 120),
		Name:        sanitizeText(a.Name, 180),
		Category:    sanitizeText(a.Category, 120),
		Ingredients: sanitizeList(a.Ingredients, 64, 20),
		SkinFit:     sanitizeList(a.SkinTags, 64, 12),
	}
}

func sanitizeCandidate(c *models.Candidate, idx int) requestCandidate {
	out := requestCandidate{
		CandidateKey:       CandidateKey(c, idx),
		ProductID:          sanitizeText(c.ProductID, 120),
		SKUID:              sanitizeText(c.SKUID, 120),
		Brand:              sanitizeText(c.Brand, 120),
		Name:               sanitizeText(c.Name, 180),
		Category:           sanitizeText(c.Category, 120),
		PriceBand:          sanitizeText(firstNonEmpty(c.PriceBand, reranking.PriceBand(c)), 32),
		SourceType:         sanitizeText(c.Source.Type, 64),
		ReasonsUserVisible: []string{},
		SocialSummary:      requestSocialSummary{Themes: []string{}, TopKeywords: []string{}},
		EvidenceDisplay:    []string{},
	}
	if c.WhyCandidate != nil {
		out.WhySummary = sanitizeText(c.WhyCandidate.Summary, 180)
		out.ReasonsUserVisible = sanitizeList(c.WhyCandidate.ReasonsUserVisible, 160, 3)
	}
	if s := c.SocialSummary; s != nil {
		out.SocialSummary = requestSocialSummary{
			Themes:        sanitizeList(s.Themes, 64, 3),
			TopKeywords:   sanitizeList(s.TopKeywords, 42, 6),
			SentimentHint: sanitizeText(s.SentimentHint, 180),
			VolumeBucket:  sanitizeText(s.VolumeBucket, 24),
		}
	}
	for _, ref := range c.Evidence {
		display := sanitizeText(firstNonEmpty(ref.Excerpt, ref.ID), 180)
		if display == "" {
			continue
		}
		out.EvidenceDisplay = append(out.EvidenceDisplay, display)
		if len(out.EvidenceDisplay) >= 4 {
			break
		}
	}
	return out
}

// sanitizeText trims s and cuts it to limit runes. limit is never below 16.
func sanitizeText(s string, limit int) string {
	if limit < 16 {
		limit = 16
	}
	return truncate(strings.TrimSpace(s), limit)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func sanitizeList(in []string, maxLen, maxItems int) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if t := sanitizeText(v, maxLen); t != "" {
			out = append(out, t)
			if len(out) >= maxItems {
				break
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
