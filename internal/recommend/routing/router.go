// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package routing

import (
	"strconv"
	"strings"

	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/textsim"
)

// Route names recorded in the audit trail.
const (
	RouteCompetitors = "comp_pool"
	RouteRelated     = "rel_pool"
	RouteDupes       = "dupe_pool"
	RouteRejected    = "rejected"
)

// Reason codes. They are internal and never reach user-visible text.
const (
	ReasonDedupeFamily        = "dedupe_product_family_id"
	ReasonDedupeVariantOf     = "dedupe_variant_of"
	ReasonDedupeProduct       = "dedupe_product_identity"
	ReasonDedupeName          = "dedupe_name"
	ReasonDedupeIndex         = "dedupe_index"
	ReasonDedupeLowerQuality  = "dedupe_lower_quality_duplicate_removed"
	ReasonDedupeReplaced      = "dedupe_replaced_by_higher_quality_candidate"
	ReasonRelatedForced       = "route_related_on_page_related_forced"
	ReasonCompSameBrand       = "competitor_same_brand_blocked"
	ReasonCompCategoryLow     = "competitor_category_match_below_threshold"
	ReasonDupeSameBrand       = "dupe_same_brand_blocked"
	ReasonDupeSimilarityLow   = "dupe_similarity_below_threshold"
	ReasonDupePriceMissing    = "dupe_price_ratio_missing"
	ReasonDupePriceHigh       = "dupe_price_ratio_above_threshold"
	ReasonDupePassed          = "route_dupe_passed_hard_gates"
	ReasonDupePreferred       = "competitor_eligible_but_route_preferred_dupe"
	ReasonCompetitorPassed    = "route_competitor_passed_hard_gates"
	ReasonRejectedByHardGates = "candidate_rejected_by_hard_gates"
)

// categoryMatchUnknown is used when either side has no category tokens.
const categoryMatchUnknown = 0.7

// Config holds the router thresholds.
type Config struct {
	AllowSameBrandCompetitors bool    `json:"allow_same_brand_competitors" koanf:"allow_same_brand_competitors"`
	AllowSameBrandDupes       bool    `json:"allow_same_brand_dupes" koanf:"allow_same_brand_dupes"`
	TauCat                    float64 `json:"tau_cat" koanf:"tau_cat"`
	TauDupe                   float64 `json:"tau_dupe" koanf:"tau_dupe"`
	TauPriceDupe              float64 `json:"tau_price_dupe" koanf:"tau_price_dupe"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		TauCat:       0.55,
		TauDupe:      0.82,
		TauPriceDupe: 1.0,
	}
}

// normalized fills zero thresholds with defaults and maps 0-100 scales.
//
//nolint:gocritic // hugeParam: small config copied once per call
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.TauCat <= 0 {
		c.TauCat = def.TauCat
	}
	if c.TauDupe <= 0 {
		c.TauDupe = def.TauDupe
	}
	if c.TauPriceDupe <= 0 {
		c.TauPriceDupe = def.TauPriceDupe
	}
	c.TauCat = models.Norm01(c.TauCat)
	c.TauDupe = models.Norm01(c.TauDupe)
	return c
}

// AuditMetrics are the gate inputs observed for one candidate.
type AuditMetrics struct {
	SourceType    string   `json:"source_type"`
	CategoryMatch float64  `json:"category_match"`
	SimTotal      *float64 `json:"sim_total"`
	PriceRatio    *float64 `json:"price_ratio"`
	SameBrand     bool     `json:"same_brand"`
}

// AuditEntry records the routing decision for one candidate.
type AuditEntry struct {
	CandidateKey string        `json:"candidate_key"`
	Route        string        `json:"route"`
	ReasonCodes  []string      `json:"reason_codes"`
	Metrics      *AuditMetrics `json:"metrics,omitempty"`
}

// Result holds the three output pools and the audit trail.
type Result struct {
	Competitors []models.Candidate `json:"competitors"`
	Related     []models.Candidate `json:"related_products"`
	Dupes       []models.Candidate `json:"dupes"`
	Audit       []AuditEntry       `json:"audit"`
}

// Route deduplicates candidates and assigns each survivor to a pool.
// Routed candidates are copies carrying the decision's reason codes.
//
//nolint:gocritic // hugeParam: anchor is read-only
func Route(anchor models.Anchor, candidates []models.Candidate, cfg Config) Result {
	cfg = cfg.normalized()

	anchorBrand := anchor.BrandKey()
	anchorTokens := textsim.CategoryTokens(anchor.Category)
	anchorPrice, anchorPriceKnown := anchor.PriceValue()

	deduped, audit := dedupe(candidates, anchorPriceKnown)

	result := Result{
		Competitors: []models.Candidate{},
		Related:     []models.Candidate{},
		Dupes:       []models.Candidate{},
		Audit:       audit,
	}

	for i := range deduped {
		row := &deduped[i]
		key := models.CandidateKey(row, i)

		m := &AuditMetrics{
			SourceType:    row.SourceType(),
			CategoryMatch: CategoryMatch(row, anchorTokens),
			SimTotal:      row.Similarity,
		}
		candidateBrand := row.BrandKey()
		m.SameBrand = anchorBrand != "" && candidateBrand != "" && anchorBrand == candidateBrand
		if candidatePrice, ok := row.PriceValue(); ok && anchorPriceKnown {
			ratio := candidatePrice / anchorPrice
			m.PriceRatio = &ratio
		}

		if m.SourceType == models.SourceTypeOnPageRelated {
			reasons := []string{ReasonRelatedForced}
			result.Related = append(result.Related, withReasons(row, reasons))
			result.Audit = append(result.Audit, AuditEntry{CandidateKey: key, Route: RouteRelated, ReasonCodes: reasons, Metrics: m})
			continue
		}

		var reasons []string

		competitorEligible := true
		if m.SameBrand && !cfg.AllowSameBrandCompetitors {
			competitorEligible = false
			reasons = append(reasons, ReasonCompSameBrand)
		}
		if m.CategoryMatch < cfg.TauCat {
			competitorEligible = false
			reasons = append(reasons, ReasonCompCategoryLow)
		}

		dupeEligible := true
		if m.SameBrand && !cfg.AllowSameBrandDupes {
			dupeEligible = false
			reasons = append(reasons, ReasonDupeSameBrand)
		}
		if m.SimTotal == nil || models.Norm01(*m.SimTotal) < cfg.TauDupe {
			dupeEligible = false
			reasons = append(reasons, ReasonDupeSimilarityLow)
		}
		switch {
		case m.PriceRatio == nil:
			dupeEligible = false
			reasons = append(reasons, ReasonDupePriceMissing)
		case *m.PriceRatio > cfg.TauPriceDupe:
			dupeEligible = false
			reasons = append(reasons, ReasonDupePriceHigh)
		}

		switch {
		case dupeEligible:
			reasons = append(reasons, ReasonDupePassed)
			if competitorEligible {
				reasons = append(reasons, ReasonDupePreferred)
			}
			result.Dupes = append(result.Dupes, withReasons(row, reasons))
			result.Audit = append(result.Audit, AuditEntry{CandidateKey: key, Route: RouteDupes, ReasonCodes: reasons, Metrics: m})
		case competitorEligible:
			reasons = append(reasons, ReasonCompetitorPassed)
			result.Competitors = append(result.Competitors, withReasons(row, reasons))
			result.Audit = append(result.Audit, AuditEntry{CandidateKey: key, Route: RouteCompetitors, ReasonCodes: reasons, Metrics: m})
		default:
			reasons = append(reasons, ReasonRejectedByHardGates)
			result.Audit = append(result.Audit, AuditEntry{CandidateKey: key, Route: RouteRejected, ReasonCodes: reasons, Metrics: m})
		}
	}

	return result
}

// RecordDecisions exports the audit trail as router decision metrics.
func RecordDecisions(audit []AuditEntry) {
	for i := range audit {
		metrics.RecordRouterDecision(audit[i].Route)
	}
}

// CategoryMatch returns the explicit category score carried by the
// candidate, else the Jaccard overlap with the anchor tokens. When either
// token set is empty the match is treated as neutral (0.7).
func CategoryMatch(c *models.Candidate, anchorTokens []string) float64 {
	if v, ok := explicitCategoryMatch(c); ok {
		return v
	}
	tokens := c.CategoryTokens
	if len(tokens) == 0 {
		tokens = textsim.CategoryTokens(c.Category)
	}
	score, ok := textsim.Jaccard(anchorTokens, tokens)
	if !ok {
		return categoryMatchUnknown
	}
	return models.Clamp01(score)
}

var categoryMatchKeys = []string{"category_use_case_match", "category_match", "use_case_match", "category_score"}

func explicitCategoryMatch(c *models.Candidate) (float64, bool) {
	for _, k := range categoryMatchKeys {
		if v, ok := c.ScoreBreakdown[k]; ok {
			return models.Norm01(v), true
		}
	}
	return 0, false
}

// Identity is the dedup key of a candidate and the reason code naming it.
type Identity struct {
	Key    string
	Reason string
}

// IdentityOf returns the dedup identity of c at position idx: family id,
// then variant-of parent, then product or sku id, then name, then position.
//
// It is coarser than models.CandidateKey. Sibling variants of one family
// collapse here to a single candidate, while every later stage (final
// dedup, interleave, exploration, tickets, tracking) keys the survivors by
// models.CandidateKey.
func IdentityOf(c *models.Candidate, idx int) Identity {
	if v := strings.TrimSpace(c.FamilyID); v != "" {
		return Identity{Key: strings.ToLower("family:" + v), Reason: ReasonDedupeFamily}
	}
	if v := strings.TrimSpace(c.VariantOf); v != "" {
		return Identity{Key: strings.ToLower("variant_of:" + v), Reason: ReasonDedupeVariantOf}
	}
	if v := firstNonEmpty(c.ProductID, c.SKUID); v != "" {
		return Identity{Key: strings.ToLower("product:" + v), Reason: ReasonDedupeProduct}
	}
	if v := strings.TrimSpace(c.Name); v != "" {
		return Identity{Key: strings.ToLower("name:" + v), Reason: ReasonDedupeName}
	}
	return Identity{Key: "idx:" + strconv.Itoa(idx), Reason: ReasonDedupeIndex}
}

// Quality is the dedup tie-break score of a candidate.
func Quality(c *models.Candidate, anchorPriceKnown bool) float64 {
	score := 0.8*models.Norm01(c.SimilarityOr(0)) + 0.2*CategoryMatch(c, nil)
	if c.SourceType() == models.SourceTypeOnPageRelated {
		score -= 0.1
	}
	if _, ok := c.PriceValue(); ok && anchorPriceKnown {
		score += 0.02
	}
	return score
}

// dedupe keeps the highest-quality member of every identity group in
// first-seen order. Ties keep the earlier member.
func dedupe(candidates []models.Candidate, anchorPriceKnown bool) ([]models.Candidate, []AuditEntry) {
	out := make([]models.Candidate, 0, len(candidates))
	var audit []AuditEntry
	indexByKey := make(map[string]int, len(candidates))

	for i := range candidates {
		row := &candidates[i]
		id := IdentityOf(row, i)

		keptIdx, seen := indexByKey[id.Key]
		if !seen {
			indexByKey[id.Key] = len(out)
			out = append(out, *row)
			continue
		}

		kept := &out[keptIdx]
		if Quality(row, anchorPriceKnown) > Quality(kept, anchorPriceKnown) {
			audit = append(audit, AuditEntry{
				CandidateKey: models.CandidateKey(kept, keptIdx),
				Route:        RouteRejected,
				ReasonCodes:  []string{id.Reason, ReasonDedupeReplaced},
			})
			out[keptIdx] = *row
			continue
		}
		audit = append(audit, AuditEntry{
			CandidateKey: models.CandidateKey(row, i),
			Route:        RouteRejected,
			ReasonCodes:  []string{id.Reason, ReasonDedupeLowerQuality},
		})
	}

	return out, audit
}

func withReasons(c *models.Candidate, reasons []string) models.Candidate {
	out := c.Clone()
	out.ReasonCodes = append(out.ReasonCodes, reasons...)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
