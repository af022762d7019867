// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"math"
	"sort"
	"strings"

	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/textsim"
)

// Feature names. They double as score_breakdown keys.
const (
	FeatureCategory      = "category_use_case_match"
	FeatureIngredient    = "ingredient_functional_similarity"
	FeatureSkinFit       = "skin_fit_similarity"
	FeatureSocial        = "social_reference_strength"
	FeaturePrice         = "price_distance"
	FeatureBrand         = "brand_constraint"
	FeatureQuality       = "quality"
	FeatureBrandAffinity = "brand_affinity"
	FeatureCoView        = "co_view"
	FeatureKBRoutine     = "kb_routine"
	ScoreTotal           = "score_total"
)

// Features is a feature vector with every value in [0,1].
type Features map[string]float64

// featureAliases lists alternative breakdown keys sources use for a feature.
var featureAliases = map[string][]string{
	FeatureCategory:      {"category_score", "category_match", "categoryUseCaseMatch", "use_case_match", "query_overlap_score"},
	FeatureIngredient:    {"ingredient_similarity", "ingredientSimilarity"},
	FeatureSkinFit:       {"skinFitSimilarity"},
	FeatureSocial:        {"social_reference_score", "socialReferenceScore"},
	FeaturePrice:         {"priceDistance", "price_similarity", "priceSimilarity"},
	FeatureBrand:         {"brand_score", "brandScore"},
	FeatureQuality:       {"quality_score", "qualityScore"},
	FeatureBrandAffinity: {"brandAffinity"},
	FeatureCoView:        {"coView", "coview", "co_view_score"},
	FeatureKBRoutine:     {"kbRoutine", "kb_routine_score"},
}

// Weights are the fixed per-block feature weights.
var Weights = map[string]map[string]float64{
	models.BlockDupes: {
		FeatureCategory:   0.28,
		FeatureIngredient: 0.22,
		FeatureSkinFit:    0.15,
		FeatureSocial:     0.10,
		FeaturePrice:      0.25,
	},
	models.BlockRelated: {
		FeatureBrandAffinity: 0.45,
		FeatureCoView:        0.35,
		FeatureKBRoutine:     0.20,
	},
	models.BlockCompetitors: {
		FeatureCategory:   0.30,
		FeatureIngredient: 0.22,
		FeatureSkinFit:    0.18,
		FeatureSocial:     0.15,
		FeaturePrice:      0.10,
		FeatureQuality:    0.05,
	},
}

// weightsFor returns the block weights. Unknown blocks score as competitors.
func weightsFor(block string) map[string]float64 {
	if w, ok := Weights[block]; ok {
		return w
	}
	return Weights[models.BlockCompetitors]
}

// sourceQualityPrior is the prior quality of each source type.
func sourceQualityPrior(sourceType string) float64 {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case "":
		return 0.55
	case models.SourceTypeCatalogSearch:
		return 0.8
	case models.SourceTypeKBBackfill:
		return 0.7
	case models.SourceTypeIngredientIndex:
		return 0.75
	case models.SourceTypeDupePipeline:
		return 0.73
	case models.SourceTypeOnPageRelated:
		return 0.52
	default:
		return 0.62
	}
}

// breakdownValue reads a feature from an existing breakdown, honoring aliases.
func breakdownValue(breakdown map[string]float64, feature string) (float64, bool) {
	if v, ok := breakdown[feature]; ok {
		return models.Norm01(v), true
	}
	for _, alias := range featureAliases[feature] {
		if v, ok := breakdown[alias]; ok {
			return models.Norm01(v), true
		}
	}
	return 0, false
}

// ComputeFeatures builds the feature vector of c for block. Values already
// present in c.ScoreBreakdown override computed ones.
func ComputeFeatures(block string, anchor *models.Anchor, c *models.Candidate) Features {
	existing := c.ScoreBreakdown
	f := make(Features, 10)

	computed := func(feature string, compute func() float64) {
		if v, ok := breakdownValue(existing, feature); ok {
			f[feature] = models.Clamp01(v)
			return
		}
		f[feature] = models.Clamp01(compute())
	}

	computed(FeatureCategory, func() float64 {
		candidateTokens := c.CategoryTokens
		if len(candidateTokens) == 0 {
			candidateTokens = textsim.CategoryTokens(c.Category)
		}
		if v, ok := textsim.Jaccard(textsim.CategoryTokens(anchor.Category), candidateTokens); ok {
			return v
		}
		return 0.5
	})

	computed(FeatureIngredient, func() float64 {
		if v, ok := textsim.Jaccard(textsim.IngredientTokens(anchor.Ingredients), textsim.IngredientTokens(c.Ingredients)); ok {
			return v
		}
		return 0.4
	})

	computed(FeatureSkinFit, func() float64 {
		return skinFitSimilarity(anchor.SkinTags, c.SkinTags)
	})

	computed(FeatureSocial, func() float64 {
		return socialStrength(c)
	})

	computed(FeaturePrice, func() float64 {
		anchorPrice, _ := anchor.PriceValue()
		candidatePrice, _ := c.PriceValue()
		return priceDistance(block, anchorPrice, candidatePrice)
	})

	anchorBrand := anchor.BrandKey()
	candidateBrand := c.BrandKey()
	crossBrand := anchorBrand != "" && candidateBrand != "" && anchorBrand != candidateBrand

	computed(FeatureBrand, func() float64 {
		if crossBrand {
			return 1
		}
		return 0
	})

	computed(FeatureQuality, func() float64 {
		coverage := models.Clamp01(float64(len(c.Evidence)) / 4)
		return sourceQualityPrior(c.Source.Type)*0.6 + coverage*0.4
	})

	computed(FeatureBrandAffinity, func() float64 {
		if crossBrand {
			return 0.55
		}
		return 1
	})

	computed(FeatureCoView, func() float64 {
		return normOr(c.CoViewScore, 0.5)
	})

	computed(FeatureKBRoutine, func() float64 {
		return normOr(c.KBRoutineScore, 0.5)
	})

	return f
}

// normalizeSkinTag maps skin tag synonyms to canonical tags.
func normalizeSkinTag(tag string) string {
	token := strings.ToLower(strings.TrimSpace(tag))
	switch token {
	case "combination skin":
		return "combination"
	case "high sensitivity", "reactive":
		return "sensitive"
	case "impaired", "damaged_barrier":
		return "impaired_barrier"
	default:
		return token
	}
}

func normalizeSkinTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := normalizeSkinTag(t); n != "" {
			out = append(out, n)
		}
	}
	return textsim.Uniq(out)
}

func skinFitSimilarity(anchorTags, candidateTags []string) float64 {
	a := normalizeSkinTags(anchorTags)
	b := normalizeSkinTags(candidateTags)
	if len(a) == 0 {
		return 0.5
	}
	if len(b) == 0 {
		return 0.45
	}
	v, ok := textsim.Jaccard(a, b)
	if !ok {
		return 0.45
	}
	return v
}

// socialStrength blends the reference score with a mention-count boost.
func socialStrength(c *models.Candidate) float64 {
	boost := 0.0
	if c.MentionCount > 0 {
		boost = math.Min(0.16, math.Log10(1+float64(c.MentionCount))*0.06)
	}
	if c.SocialRefScore == nil {
		return models.Clamp01(0.4 + boost*0.5)
	}
	return models.Clamp01(models.Norm01(*c.SocialRefScore) + boost)
}

// priceDistance rewards price closeness. For dupes, being cheaper than the
// anchor dominates. Zero prices are unknown.
func priceDistance(block string, anchorPrice, candidatePrice float64) float64 {
	if anchorPrice <= 0 {
		return 0.5
	}
	if candidatePrice <= 0 {
		return 0.4
	}
	closeness := models.Clamp01(1 - math.Abs(anchorPrice-candidatePrice)/math.Max(anchorPrice, candidatePrice))
	if block != models.BlockDupes {
		return closeness
	}
	cheapness := 1.0
	if candidatePrice > anchorPrice {
		cheapness = models.Clamp01(anchorPrice / candidatePrice)
	}
	return models.Clamp01(cheapness*0.7 + closeness*0.3)
}

func normOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return models.Norm01(*p)
}

// Contribution is one feature's share of score_total.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Contributions returns weight*value per weighted feature, largest first,
// ties broken by feature name.
func Contributions(f Features, weights map[string]float64) []Contribution {
	out := make([]Contribution, 0, len(weights))
	for feature, weight := range weights {
		value := models.Clamp01(f[feature])
		out = append(out, Contribution{
			Feature:      feature,
			Value:        value,
			Weight:       weight,
			Contribution: models.Round(value*weight, 6),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}
