// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

import (
	"strconv"
	"strings"
)

// Block names used throughout the pipeline and in API payloads.
const (
	BlockCompetitors = "competitors"
	BlockRelated     = "related_products"
	BlockDupes       = "dupes"
)

// Blocks lists the block names in response order.
var Blocks = []string{BlockCompetitors, BlockRelated, BlockDupes}

// IsValidBlock reports whether name is one of the three recommendation blocks.
func IsValidBlock(name string) bool {
	switch name {
	case BlockCompetitors, BlockRelated, BlockDupes:
		return true
	default:
		return false
	}
}

// Source type identifiers. The source named catalog_ann reports catalog_search.
const (
	SourceTypeCatalogSearch   = "catalog_search"
	SourceTypeIngredientIndex = "ingredient_index"
	SourceTypeSkinFitLight    = "skin_fit_light"
	SourceTypeKBBackfill      = "kb_backfill"
	SourceTypeDupePipeline    = "dupe_pipeline"
	SourceTypeOnPageRelated   = "on_page_related"
	SourceTypeUnknown         = "unknown"
)

// Limits applied when candidates are normalized.
const (
	MaxEvidenceRefs = 6
	MaxExtraKeys    = 16
	MaxReasons      = 3
)

// SourceRef identifies where a candidate came from.
type SourceRef struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// EvidenceRef is a short piece of supporting evidence attached to a candidate.
type EvidenceRef struct {
	ID         string `json:"id,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	URL        string `json:"url,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// WhyCandidate is the user-visible explanation for a candidate.
type WhyCandidate struct {
	Summary             string   `json:"summary"`
	ReasonsUserVisible  []string `json:"reasons_user_visible"`
	BoundaryUserVisible string   `json:"boundary_user_visible,omitempty"`
}

// TimeWindow bounds the observation period of a social signal.
type TimeWindow struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// SocialSignal is the raw per-candidate social evidence returned by the
// social source. Scores are normalized to [0,1]; nil means unknown.
type SocialSignal struct {
	CoMentionStrength *float64           `json:"co_mention_strength,omitempty"`
	SentimentProxy    *float64           `json:"sentiment_proxy,omitempty"`
	ContextMatch      *float64           `json:"context_match,omitempty"`
	TopicKeywords     []string           `json:"topic_keywords,omitempty"`
	Channels          []string           `json:"channels,omitempty"`
	PlatformScores    map[string]float64 `json:"platform_scores,omitempty"`
	TimeWindow        *TimeWindow        `json:"time_window,omitempty"`
}

// SocialSummary is the user-visible digest of a SocialSignal.
type SocialSummary struct {
	Themes        []string `json:"themes"`
	VolumeBucket  string   `json:"volume_bucket"`
	TopKeywords   []string `json:"top_keywords,omitempty"`
	SentimentHint string   `json:"sentiment_hint,omitempty"`
}

// Candidate is a recommendation candidate as produced by a source and
// progressively enriched by routing, scoring and social enrichment.
//
// Similarity and every ScoreBreakdown entry are kept in [0,1].
type Candidate struct {
	ProductID      string             `json:"product_id,omitempty"`
	SKUID          string             `json:"sku_id,omitempty"`
	FamilyID       string             `json:"family_id,omitempty"`
	VariantOf      string             `json:"variant_of,omitempty"`
	Name           string             `json:"name,omitempty"`
	BrandID        string             `json:"brand_id,omitempty"`
	Brand          string             `json:"brand,omitempty"`
	URL            string             `json:"url,omitempty"`
	Category       string             `json:"category,omitempty"`
	CategoryTokens []string           `json:"category_tokens,omitempty"`
	Ingredients    []string           `json:"key_ingredients,omitempty"`
	SkinTags       []string           `json:"skin_type_tags,omitempty"`
	Price          *float64           `json:"price,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	PriceBand      string             `json:"price_band,omitempty"`
	Similarity     *float64           `json:"similarity_score,omitempty"`
	Source         SourceRef          `json:"source"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
	Evidence       []EvidenceRef      `json:"evidence_refs,omitempty"`
	WhyCandidate   *WhyCandidate      `json:"why_candidate,omitempty"`
	SocialSummary  *SocialSummary     `json:"social_summary_user_visible,omitempty"`
	SocialRefScore *float64           `json:"social_ref_score,omitempty"`
	MentionCount   int                `json:"mention_count,omitempty"`
	CoViewScore    *float64           `json:"co_view_score,omitempty"`
	KBRoutineScore *float64           `json:"kb_routine_score,omitempty"`
	RankerScores   map[string]float64 `json:"ranker_scores,omitempty"`
	IsNew          bool               `json:"is_new,omitempty"`
	Extra          map[string]string  `json:"extra,omitempty"`

	// Internal fields. Never serialized.
	Origin      string        `json:"-"` // source name that produced the candidate
	ReasonCodes []string      `json:"-"`
	SocialRaw   *SocialSignal `json:"-"`
}

// SimilarityOr returns the similarity or def when it is unknown.
func (c *Candidate) SimilarityOr(def float64) float64 {
	if c.Similarity == nil {
		return def
	}
	return *c.Similarity
}

// SetSimilarity stores v as the candidate similarity.
func (c *Candidate) SetSimilarity(v float64) {
	c.Similarity = &v
}

// Score returns the score_total breakdown entry, falling back to similarity.
func (c *Candidate) Score() float64 {
	if v, ok := c.ScoreBreakdown["score_total"]; ok {
		return v
	}
	return c.SimilarityOr(0)
}

// SourceType returns the source type, or "unknown" when empty.
func (c *Candidate) SourceType() string {
	if c.Source.Type == "" {
		return SourceTypeUnknown
	}
	return c.Source.Type
}

// BrandKey returns the lowercased brand identity (brand id, else brand name).
func (c *Candidate) BrandKey() string {
	return normalizeText(firstNonEmpty(c.BrandID, c.Brand))
}

// Clone returns a deep copy of the candidate.
//
//nolint:gocritic // hugeParam: value receiver keeps call sites simple
func (c Candidate) Clone() Candidate {
	out := c
	out.CategoryTokens = cloneStrings(c.CategoryTokens)
	out.Ingredients = cloneStrings(c.Ingredients)
	out.SkinTags = cloneStrings(c.SkinTags)
	out.ReasonCodes = cloneStrings(c.ReasonCodes)
	out.Price = cloneFloat(c.Price)
	out.Similarity = cloneFloat(c.Similarity)
	out.SocialRefScore = cloneFloat(c.SocialRefScore)
	out.CoViewScore = cloneFloat(c.CoViewScore)
	out.KBRoutineScore = cloneFloat(c.KBRoutineScore)
	if c.ScoreBreakdown != nil {
		out.ScoreBreakdown = make(map[string]float64, len(c.ScoreBreakdown))
		for k, v := range c.ScoreBreakdown {
			out.ScoreBreakdown[k] = v
		}
	}
	if c.RankerScores != nil {
		out.RankerScores = make(map[string]float64, len(c.RankerScores))
		for k, v := range c.RankerScores {
			out.RankerScores[k] = v
		}
	}
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	if c.Evidence != nil {
		out.Evidence = append([]EvidenceRef(nil), c.Evidence...)
	}
	if c.WhyCandidate != nil {
		why := *c.WhyCandidate
		why.ReasonsUserVisible = cloneStrings(why.ReasonsUserVisible)
		out.WhyCandidate = &why
	}
	if c.SocialSummary != nil {
		s := *c.SocialSummary
		s.Themes = cloneStrings(s.Themes)
		s.TopKeywords = cloneStrings(s.TopKeywords)
		out.SocialSummary = &s
	}
	if c.SocialRaw != nil {
		out.SocialRaw = c.SocialRaw.Clone()
	}
	return out
}

// Clone returns a deep copy of the signal.
func (s *SocialSignal) Clone() *SocialSignal {
	if s == nil {
		return nil
	}
	out := *s
	out.CoMentionStrength = cloneFloat(s.CoMentionStrength)
	out.SentimentProxy = cloneFloat(s.SentimentProxy)
	out.ContextMatch = cloneFloat(s.ContextMatch)
	out.TopicKeywords = cloneStrings(s.TopicKeywords)
	out.Channels = cloneStrings(s.Channels)
	if s.PlatformScores != nil {
		out.PlatformScores = make(map[string]float64, len(s.PlatformScores))
		for k, v := range s.PlatformScores {
			out.PlatformScores[k] = v
		}
	}
	if s.TimeWindow != nil {
		tw := *s.TimeWindow
		out.TimeWindow = &tw
	}
	return &out
}

// CloneCandidates deep-copies a candidate list.
func CloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// CandidateKey returns the lowercased identity used for deduplication across
// blocks, tickets and tracking: product id, sku id, url, name, then position.
// Family and variant ids are ignored; the router has already collapsed each
// family to one candidate (see routing.IdentityOf).
//
//nolint:gocritic // hugeParam: read-only access
func CandidateKey(c *Candidate, idx int) string {
	if key := normalizeText(firstNonEmpty(c.ProductID, c.SKUID, c.URL, c.Name)); key != "" {
		return key
	}
	return "idx:" + strconv.Itoa(idx)
}

// Anchor is the product recommendations are computed for.
type Anchor struct {
	ProductID   string   `json:"product_id,omitempty" validate:"omitempty,max=256"`
	Name        string   `json:"name,omitempty" validate:"omitempty,max=512"`
	BrandID     string   `json:"brand_id,omitempty" validate:"omitempty,max=256"`
	Brand       string   `json:"brand,omitempty" validate:"omitempty,max=256"`
	Category    string   `json:"category,omitempty" validate:"omitempty,max=512"`
	Ingredients []string `json:"key_ingredients,omitempty" validate:"omitempty,max=200"`
	SkinTags    []string `json:"skin_tags,omitempty" validate:"omitempty,max=32"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency    string   `json:"currency,omitempty" validate:"omitempty,max=8"`
	URL         string   `json:"url,omitempty" validate:"omitempty,max=2048"`
}

// BrandKey returns the lowercased brand identity of the anchor.
//
//nolint:gocritic // hugeParam: read-only access
func (a *Anchor) BrandKey() string {
	return normalizeText(firstNonEmpty(a.BrandID, a.Brand))
}

// PriceValue returns the anchor price when it is known and positive.
func (a *Anchor) PriceValue() (float64, bool) {
	return PositivePrice(a.Price)
}

// PriceValue returns the candidate price when it is known and positive.
func (c *Candidate) PriceValue() (float64, bool) {
	return PositivePrice(c.Price)
}

// PositivePrice dereferences p when it is a positive price.
func PositivePrice(p *float64) (float64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
