// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"sort"
	"strings"

	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/textsim"
)

// defaultSimilarity is assumed for candidates that report none.
const defaultSimilarity = 0.45

// NormalizeCandidates returns cleaned copies of raw. Entries with no
// product id, sku id, name or url are dropped. Similarity and breakdown
// entries are brought into [0,1]; a similarity above 1 is read as a
// percentage. Candidates without a source type get defaultType, and every
// candidate is stamped with origin.
func NormalizeCandidates(raw []models.Candidate, origin, defaultType string) []models.Candidate {
	out := make([]models.Candidate, 0, len(raw))
	for i := range raw {
		c, ok := normalizeCandidate(&raw[i], origin, defaultType)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// NormalizeSourceResult normalizes every list of res for sourceName.
// Related products default to the on_page_related source type. A nil res
// yields an empty result.
func NormalizeSourceResult(res *models.SourceResult, sourceName string) *models.SourceResult {
	out := &models.SourceResult{
		Candidates:      []models.Candidate{},
		Competitors:     []models.Candidate{},
		RelatedProducts: []models.Candidate{},
		Dupes:           []models.Candidate{},
		Queries:         []string{},
		Meta:            map[string]any{},
	}
	if res == nil {
		return out
	}

	defaultType := DefaultSourceType(sourceName)
	out.Candidates = NormalizeCandidates(res.Candidates, sourceName, defaultType)
	out.Competitors = NormalizeCandidates(res.Competitors, sourceName, defaultType)
	out.RelatedProducts = NormalizeCandidates(res.RelatedProducts, sourceName, models.SourceTypeOnPageRelated)
	out.Dupes = NormalizeCandidates(res.Dupes, sourceName, defaultType)

	for _, q := range res.Queries {
		if q = strings.TrimSpace(q); q == "" {
			continue
		}
		out.Queries = append(out.Queries, q)
		if len(out.Queries) == models.MaxSourceQueries {
			break
		}
	}
	for k, v := range res.Meta {
		out.Meta[k] = v
	}
	return out
}

func normalizeCandidate(in *models.Candidate, origin, defaultType string) (models.Candidate, bool) {
	c := in.Clone()

	c.ProductID = strings.TrimSpace(c.ProductID)
	c.SKUID = strings.TrimSpace(c.SKUID)
	c.FamilyID = strings.TrimSpace(c.FamilyID)
	c.VariantOf = strings.TrimSpace(c.VariantOf)
	c.Name = strings.TrimSpace(c.Name)
	c.BrandID = strings.TrimSpace(c.BrandID)
	c.Brand = strings.TrimSpace(c.Brand)
	c.URL = strings.TrimSpace(c.URL)
	c.Category = strings.TrimSpace(c.Category)
	c.Currency = strings.TrimSpace(c.Currency)

	if c.ProductID == "" && c.SKUID == "" && c.Name == "" && c.URL == "" {
		return models.Candidate{}, false
	}

	c.Source.Type = strings.ToLower(strings.TrimSpace(c.Source.Type))
	c.Source.Name = strings.TrimSpace(c.Source.Name)
	c.Source.URL = strings.TrimSpace(c.Source.URL)
	if c.Source.Type == "" {
		c.Source.Type = defaultType
		if c.Source.Type == "" {
			c.Source.Type = models.SourceTypeUnknown
		}
	}
	c.Origin = origin

	sim := defaultSimilarity
	if c.Similarity != nil {
		sim = models.Norm01(*c.Similarity)
	}
	c.SetSimilarity(models.Round(sim, 3))

	for k, v := range c.ScoreBreakdown {
		c.ScoreBreakdown[k] = models.Norm01(v)
	}

	c.Ingredients = cleanList(c.Ingredients, false)
	c.SkinTags = cleanList(c.SkinTags, true)
	c.CategoryTokens = cleanList(c.CategoryTokens, true)
	if len(c.CategoryTokens) == 0 && c.Category != "" {
		c.CategoryTokens = textsim.CategoryTokens(c.Category)
	}

	if c.Price != nil {
		if p, ok := models.PositivePrice(c.Price); ok {
			c.Price = &p
		} else {
			c.Price = nil
		}
	}

	if len(c.Evidence) > models.MaxEvidenceRefs {
		c.Evidence = c.Evidence[:models.MaxEvidenceRefs]
	}
	c.Extra = boundExtra(c.Extra)

	return c, true
}

// cleanList trims, drops empties and dedupes values, preserving order.
// Case-folded lists compare and store lowercase.
func cleanList(values []string, fold bool) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// boundExtra keeps at most MaxExtraKeys entries, choosing keys in sorted
// order so the result is deterministic.
func boundExtra(extra map[string]string) map[string]string {
	if len(extra) <= models.MaxExtraKeys {
		return extra
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, models.MaxExtraKeys)
	for _, k := range keys[:models.MaxExtraKeys] {
		out[k] = extra[k]
	}
	return out
}
