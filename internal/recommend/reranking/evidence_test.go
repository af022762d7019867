// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"testing"

	"github.com/tomtom215/recoblocks/internal/models"
)

func TestBuildEvidence(t *testing.T) {
	t.Parallel()

	anchor := &models.Anchor{Price: ptr(100)}
	existing := models.EvidenceRef{ID: "kb-1", SourceType: "kb_backfill", Excerpt: "Routine pairing"}
	c := &models.Candidate{
		URL:            "https://shop.example/p/1",
		Category:       "Serum",
		Ingredients:    []string{"niacinamide", "zinc", "panthenol", "squalane", "ceramide"},
		Price:          ptr(79.5),
		SocialRefScore: ptr(62),
		Evidence:       []models.EvidenceRef{existing, existing},
	}
	f := Features{FeatureCategory: 0.6, FeatureIngredient: 0.5, FeaturePrice: 0.7, FeatureSocial: 0.5}

	refs := BuildEvidence(anchor, c, f)

	want := []string{
		"Routine pairing",
		"Category/use-case: Serum",
		"Ingredient overlap: niacinamide, zinc, panthenol, squalane",
		"Price: anchor 100, candidate 79.5",
		"Social reference strength: 0.62",
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %d: %+v", len(want), len(refs), refs)
	}
	for i, excerpt := range want {
		if refs[i].Excerpt != excerpt {
			t.Errorf("ref %d: expected %q, got %q", i, excerpt, refs[i].Excerpt)
		}
	}
	if refs[1].SourceType != models.SourceTypeUnknown {
		t.Errorf("expected derived refs to default source type to unknown, got %q", refs[1].SourceType)
	}
}

func TestBuildEvidenceThresholdsAndLimit(t *testing.T) {
	t.Parallel()

	c := &models.Candidate{Category: "Serum", SocialRefScore: ptr(0.9)}
	refs := BuildEvidence(&models.Anchor{}, c, Features{FeatureCategory: 0.44, FeatureSocial: 0.34})
	if len(refs) != 0 {
		t.Errorf("expected no refs below thresholds, got %+v", refs)
	}

	many := make([]models.EvidenceRef, 0, 10)
	for i := 0; i < 10; i++ {
		many = append(many, models.EvidenceRef{ID: string(rune('a' + i))})
	}
	c = &models.Candidate{Evidence: many}
	if refs := BuildEvidence(&models.Anchor{}, c, Features{}); len(refs) != models.MaxEvidenceRefs {
		t.Errorf("expected %d refs, got %d", models.MaxEvidenceRefs, len(refs))
	}
}

func TestPriceBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    models.Candidate
		want string
	}{
		{"explicit band wins", models.Candidate{PriceBand: "Luxury", Price: ptr(5)}, PriceBandLuxury},
		{"invalid band derived", models.Candidate{PriceBand: "cheap", Price: ptr(5)}, PriceBandBudget},
		{"mid", models.Candidate{Price: ptr(20)}, PriceBandMid},
		{"premium", models.Candidate{Price: ptr(55)}, PriceBandPremium},
		{"luxury", models.Candidate{Price: ptr(110)}, PriceBandLuxury},
		{"no price", models.Candidate{}, PriceBandUnknown},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := tt.c
			if got := PriceBand(&c); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
