// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"context"
	"sort"

	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend"
)

// breakdownFeatures are the features every scored candidate reports.
var breakdownFeatures = []string{
	FeatureCategory,
	FeatureIngredient,
	FeatureSkinFit,
	FeatureSocial,
	FeaturePrice,
	FeatureBrand,
}

// Scorer computes per-block feature scores and attaches user-visible
// explanations. It holds no state and is safe for concurrent use.
type Scorer struct{}

var _ recommend.Reranker = (*Scorer)(nil)

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Name returns the reranker identifier.
func (s *Scorer) Name() string {
	return "score_explain"
}

// Rerank implements recommend.Reranker. Scoring never blocks, so ctx is
// only checked up front.
func (s *Scorer) Rerank(ctx context.Context, block string, anchor *models.Anchor, items []models.Candidate, lang string) []models.Candidate {
	if ctx.Err() != nil {
		return items
	}
	return s.Score(block, anchor, items, lang)
}

// Score returns scored copies of items, sorted by score_total desc, then
// social strength desc, then name. The input is not modified.
func (s *Scorer) Score(block string, anchor *models.Anchor, items []models.Candidate, lang string) []models.Candidate {
	if anchor == nil {
		anchor = &models.Anchor{}
	}

	type scored struct {
		candidate models.Candidate
		top       []Contribution
	}
	out := make([]scored, 0, len(items))
	for i := range items {
		c, top := scoreCandidate(block, anchor, &items[i])
		out = append(out, scored{candidate: c, top: top})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i].candidate, &out[j].candidate
		if ta, tb := a.ScoreBreakdown[ScoreTotal], b.ScoreBreakdown[ScoreTotal]; ta != tb {
			return ta > tb
		}
		if sa, sb := a.ScoreBreakdown[FeatureSocial], b.ScoreBreakdown[FeatureSocial]; sa != sb {
			return sa > sb
		}
		return a.Name < b.Name
	})

	result := make([]models.Candidate, len(out))
	for i := range out {
		c := out[i].candidate
		c.WhyCandidate = Explain(block, &c, out[i].top, lang)
		c.SocialSummary = BuildSocialSummary(c.SocialRaw, lang)
		result[i] = c
	}
	return result
}

// scoreCandidate returns a scored copy of c and its three strongest
// contributions.
func scoreCandidate(block string, anchor *models.Anchor, c *models.Candidate) (models.Candidate, []Contribution) {
	f := ComputeFeatures(block, anchor, c)
	contributions := Contributions(f, weightsFor(block))

	total := 0.0
	for _, contrib := range contributions {
		total += contrib.Contribution
	}
	total = models.Round(models.Clamp01(total), 3)

	out := c.Clone()
	breakdown := make(map[string]float64, len(breakdownFeatures)+4)
	for _, feature := range breakdownFeatures {
		breakdown[feature] = models.Round(f[feature], 3)
	}
	switch block {
	case models.BlockCompetitors:
		breakdown[FeatureQuality] = models.Round(f[FeatureQuality], 3)
	case models.BlockRelated:
		breakdown[FeatureBrandAffinity] = models.Round(f[FeatureBrandAffinity], 3)
		breakdown[FeatureCoView] = models.Round(f[FeatureCoView], 3)
		breakdown[FeatureKBRoutine] = models.Round(f[FeatureKBRoutine], 3)
	}
	breakdown[ScoreTotal] = total

	out.ScoreBreakdown = breakdown
	out.SetSimilarity(total)
	out.Source.Type = c.SourceType()
	out.PriceBand = PriceBand(c)
	out.Evidence = BuildEvidence(anchor, c, f)

	top := contributions
	if len(top) > models.MaxReasons {
		top = top[:models.MaxReasons]
	}
	return out, top
}
