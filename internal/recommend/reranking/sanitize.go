// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"regexp"
	"strings"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Every string that reaches a user passes through SanitizeText. Internal
// routing and debug tokens are listed here and nowhere else.
var (
	internalTokenPattern = regexp.MustCompile(`(?i)\b(?:route_|dedupe_|internal_|fallback_|router\.)[a-z0-9_.-]*(?:\s*[:=]\s*[a-z0-9_.-]*)?`)
	refIDPattern         = regexp.MustCompile(`(?i)\bref_?id\s*[:=]?\s*[a-z0-9_.-]*`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	bareTokenPattern     = regexp.MustCompile(`(?i)^[a-z0-9_.-]+$`)
	internalWordPattern  = regexp.MustCompile(`(?i)(?:route|dedupe|internal|fallback|code|ref)`)
)

// SanitizeText strips internal tokens from user-visible text and collapses
// whitespace. A result that is a single code-like token naming an internal
// concept is dropped entirely.
func SanitizeText(text string) string {
	next := strings.TrimSpace(text)
	if next == "" {
		return ""
	}
	next = internalTokenPattern.ReplaceAllString(next, "")
	next = refIDPattern.ReplaceAllString(next, "")
	next = strings.TrimSpace(whitespacePattern.ReplaceAllString(next, " "))
	if next == "" {
		return ""
	}
	if bareTokenPattern.MatchString(next) && internalWordPattern.MatchString(next) {
		return ""
	}
	return next
}

// SanitizeWhy sanitizes every user-visible field of why in place. Empty
// reasons are dropped and the list is bounded.
func SanitizeWhy(why *models.WhyCandidate) {
	if why == nil {
		return
	}
	why.Summary = SanitizeText(why.Summary)
	why.BoundaryUserVisible = SanitizeText(why.BoundaryUserVisible)

	reasons := make([]string, 0, len(why.ReasonsUserVisible))
	seen := make(map[string]struct{}, len(why.ReasonsUserVisible))
	for _, r := range why.ReasonsUserVisible {
		r = SanitizeText(r)
		key := strings.ToLower(r)
		if r == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		reasons = append(reasons, r)
		if len(reasons) == models.MaxReasons {
			break
		}
	}
	why.ReasonsUserVisible = reasons
}

// SanitizeCandidates scrubs the user-visible text of every candidate in
// place: the explanation and the social summary. ReasonCodes and SocialRaw
// are never serialized and are left for the enrichment worker.
func SanitizeCandidates(items []models.Candidate) {
	for i := range items {
		SanitizeWhy(items[i].WhyCandidate)
		sanitizeSocialSummary(items[i].SocialSummary)
	}
}

func sanitizeSocialSummary(s *models.SocialSummary) {
	if s == nil {
		return
	}
	s.Themes = sanitizeList(s.Themes)
	s.TopKeywords = sanitizeList(s.TopKeywords)
	s.SentimentHint = SanitizeText(s.SentimentHint)
}

func sanitizeList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = SanitizeText(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
