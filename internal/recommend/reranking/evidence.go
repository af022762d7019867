// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Evidence thresholds. A feature below its threshold adds no evidence.
const (
	evidenceCategoryMin   = 0.45
	evidenceIngredientMin = 0.4
	evidencePriceMin      = 0.35
	evidenceSocialMin     = 0.35
	evidenceIngredients   = 4
)

// Price bands.
const (
	PriceBandBudget  = "budget"
	PriceBandMid     = "mid"
	PriceBandPremium = "premium"
	PriceBandLuxury  = "luxury"
	PriceBandUnknown = "unknown"
)

// BuildEvidence returns the candidate's evidence refs followed by refs
// derived from strong features, deduplicated and bounded.
func BuildEvidence(anchor *models.Anchor, c *models.Candidate, f Features) []models.EvidenceRef {
	refs := make([]models.EvidenceRef, 0, len(c.Evidence)+4)
	refs = append(refs, c.Evidence...)

	sourceType := c.SourceType()
	add := func(excerpt string) {
		refs = append(refs, models.EvidenceRef{SourceType: sourceType, URL: c.URL, Excerpt: excerpt})
	}

	if f[FeatureCategory] >= evidenceCategoryMin && strings.TrimSpace(c.Category) != "" {
		add("Category/use-case: " + strings.TrimSpace(c.Category))
	}
	if f[FeatureIngredient] >= evidenceIngredientMin && len(c.Ingredients) > 0 {
		top := c.Ingredients
		if len(top) > evidenceIngredients {
			top = top[:evidenceIngredients]
		}
		add("Ingredient overlap: " + strings.Join(top, ", "))
	}
	anchorPrice, anchorKnown := anchor.PriceValue()
	candidatePrice, candidateKnown := c.PriceValue()
	if f[FeaturePrice] >= evidencePriceMin && anchorKnown && candidateKnown {
		add("Price: anchor " + formatPrice(anchorPrice) + ", candidate " + formatPrice(candidatePrice))
	}
	if f[FeatureSocial] >= evidenceSocialMin && c.SocialRefScore != nil {
		add(fmt.Sprintf("Social reference strength: %.2f", models.Norm01(*c.SocialRefScore)))
	}

	return dedupeEvidence(refs, models.MaxEvidenceRefs)
}

func dedupeEvidence(refs []models.EvidenceRef, limit int) []models.EvidenceRef {
	type evidenceKey struct{ id, sourceType, url, excerpt string }

	out := make([]models.EvidenceRef, 0, len(refs))
	seen := make(map[evidenceKey]struct{}, len(refs))
	for _, r := range refs {
		k := evidenceKey{r.ID, r.SourceType, r.URL, r.Excerpt}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PriceBand returns the candidate's price band. An explicit valid band
// wins; otherwise it is derived from the price.
func PriceBand(c *models.Candidate) string {
	switch band := strings.ToLower(strings.TrimSpace(c.PriceBand)); band {
	case PriceBandBudget, PriceBandMid, PriceBandPremium, PriceBandLuxury, PriceBandUnknown:
		return band
	}
	price, ok := c.PriceValue()
	switch {
	case !ok:
		return PriceBandUnknown
	case price < 20:
		return PriceBandBudget
	case price < 55:
		return PriceBandMid
	case price < 110:
		return PriceBandPremium
	default:
		return PriceBandLuxury
	}
}
