// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package experiment

import (
	"math"
	"sort"

	"github.com/tomtom215/recoblocks/internal/models"
)

const (
	// MaxExploreItems bounds exploration slots per block.
	MaxExploreItems = 5

	minUncertainty = 0.35
	newItemBoost   = 0.2
)

// Exploration is the ranked list with exploration slots appended, plus the
// identities of the appended candidates in slot order.
type Exploration struct {
	Items []models.Candidate
	Added []string
}

// Uncertainty peaks for scores near 0.5. New items get a boost.
func Uncertainty(c *models.Candidate) float64 {
	u := 1 - math.Abs(c.Score()-0.5)*2
	if c.IsNew {
		u += newItemBoost
	}
	return models.Clamp01(u)
}

type exploreCandidate struct {
	key         string
	uncertainty float64
	score       float64
	item        *models.Candidate
}

// SelectExploration appends up to maxItems uncertain candidates from gated
// to the tail of ranked. Candidates already ranked are never re-selected,
// and candidates below max(0.35, rate/2) uncertainty are skipped.
func SelectExploration(ranked, gated []models.Candidate, rate float64, maxItems int) Exploration {
	out := Exploration{Items: models.CloneCandidates(ranked)}
	if out.Items == nil {
		out.Items = []models.Candidate{}
	}

	rate = models.Clamp01(rate)
	if maxItems > MaxExploreItems {
		maxItems = MaxExploreItems
	}
	if rate == 0 || maxItems <= 0 || len(gated) == 0 {
		return out
	}

	seen := make(map[string]struct{}, len(ranked)+len(gated))
	for i := range ranked {
		seen[models.CandidateKey(&ranked[i], i)] = struct{}{}
	}

	threshold := math.Max(minUncertainty, rate*0.5)
	pool := make([]exploreCandidate, 0, len(gated))
	for i := range gated {
		c := &gated[i]
		key := models.CandidateKey(c, i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		u := Uncertainty(c)
		if u < threshold {
			continue
		}
		pool = append(pool, exploreCandidate{key: key, uncertainty: u, score: c.Score(), item: c})
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].uncertainty != pool[j].uncertainty {
			return pool[i].uncertainty > pool[j].uncertainty
		}
		if pool[i].score != pool[j].score {
			return pool[i].score < pool[j].score
		}
		return pool[i].key < pool[j].key
	})

	if len(pool) > maxItems {
		pool = pool[:maxItems]
	}
	for _, p := range pool {
		out.Items = append(out.Items, p.item.Clone())
		out.Added = append(out.Added, p.key)
	}
	return out
}
