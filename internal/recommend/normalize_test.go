// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"strconv"
	"testing"

	"github.com/tomtom215/recoblocks/internal/models"
)

func TestNormalizeCandidates(t *testing.T) {
	t.Parallel()

	t.Run("drops entries without identity", func(t *testing.T) {
		t.Parallel()
		raw := []models.Candidate{
			{Brand: "NoIdentity"},
			{Name: "  "},
			{URL: "https://example.com/p/1"},
			{SKUID: "sku-1"},
		}
		got := NormalizeCandidates(raw, SourceCatalogANN, models.SourceTypeCatalogSearch)
		if len(got) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(got))
		}
	})

	t.Run("similarity", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			sim  *float64
			want float64
		}{
			{"missing uses default", nil, 0.45},
			{"fraction kept", fp(0.73), 0.73},
			{"percentage scaled", fp(82), 0.82},
			{"rounded", fp(0.12345), 0.123},
			{"negative clamped", fp(-0.4), 0},
		}
		for _, tt := range tests {
			got := NormalizeCandidates([]models.Candidate{{Name: "p", Similarity: tt.sim}}, SourceCatalogANN, "")
			if sim := got[0].SimilarityOr(-1); sim != tt.want {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, sim)
			}
		}
	})

	t.Run("source type and origin", func(t *testing.T) {
		t.Parallel()
		raw := []models.Candidate{
			{Name: "typed", Source: models.SourceRef{Type: " On_Page_Related "}},
			{Name: "untyped"},
		}
		got := NormalizeCandidates(raw, SourceCatalogANN, models.SourceTypeCatalogSearch)
		if got[0].Source.Type != models.SourceTypeOnPageRelated {
			t.Errorf("expected lowercased type, got %q", got[0].Source.Type)
		}
		if got[1].Source.Type != models.SourceTypeCatalogSearch {
			t.Errorf("expected default type, got %q", got[1].Source.Type)
		}
		for i := range got {
			if got[i].Origin != SourceCatalogANN {
				t.Errorf("expected origin %s, got %q", SourceCatalogANN, got[i].Origin)
			}
		}

		unknown := NormalizeCandidates([]models.Candidate{{Name: "x"}}, "", "")
		if unknown[0].Source.Type != models.SourceTypeUnknown {
			t.Errorf("expected unknown type, got %q", unknown[0].Source.Type)
		}
	})

	t.Run("lists and price", func(t *testing.T) {
		t.Parallel()
		raw := []models.Candidate{{
			Name:        "p",
			Category:    "Skincare > Serum",
			Ingredients: []string{" Niacinamide", "niacinamide", "", "Zinc"},
			SkinTags:    []string{"Oily", "oily "},
			Price:       fp(-3),
			ScoreBreakdown: map[string]float64{
				"ingredient_similarity": 60,
			},
		}}
		got := NormalizeCandidates(raw, SourceIngredientIndex, SourceIngredientIndex)[0]

		if len(got.Ingredients) != 2 || got.Ingredients[0] != "Niacinamide" {
			t.Errorf("expected deduplicated ingredients, got %v", got.Ingredients)
		}
		if len(got.SkinTags) != 1 || got.SkinTags[0] != "oily" {
			t.Errorf("expected folded skin tags, got %v", got.SkinTags)
		}
		if len(got.CategoryTokens) == 0 {
			t.Error("expected category tokens derived from category")
		}
		if got.Price != nil {
			t.Errorf("expected non-positive price dropped, got %v", *got.Price)
		}
		if v := got.ScoreBreakdown["ingredient_similarity"]; v != 0.6 {
			t.Errorf("expected breakdown scaled to 0.6, got %v", v)
		}
	})

	t.Run("bounds evidence and extra", func(t *testing.T) {
		t.Parallel()
		c := models.Candidate{Name: "p", Extra: map[string]string{}}
		for i := 0; i < 10; i++ {
			c.Evidence = append(c.Evidence, models.EvidenceRef{ID: strconv.Itoa(i)})
		}
		for i := 0; i < 20; i++ {
			c.Extra["k"+strconv.Itoa(10+i)] = "v"
		}
		got := NormalizeCandidates([]models.Candidate{c}, SourceKBBackfill, SourceKBBackfill)[0]
		if len(got.Evidence) != models.MaxEvidenceRefs {
			t.Errorf("expected %d evidence refs, got %d", models.MaxEvidenceRefs, len(got.Evidence))
		}
		if len(got.Extra) != models.MaxExtraKeys {
			t.Errorf("expected %d extra keys, got %d", models.MaxExtraKeys, len(got.Extra))
		}
		if _, ok := got.Extra["k10"]; !ok {
			t.Error("expected lowest sorted key kept")
		}
		if _, ok := got.Extra["k29"]; ok {
			t.Error("expected highest sorted key dropped")
		}
	})

	t.Run("input not mutated", func(t *testing.T) {
		t.Parallel()
		raw := []models.Candidate{{Name: " p ", Similarity: fp(90)}}
		NormalizeCandidates(raw, SourceCatalogANN, "")
		if raw[0].Name != " p " || *raw[0].Similarity != 90 {
			t.Errorf("expected input untouched, got %+v", raw[0])
		}
	})
}

func TestNormalizeSourceResult(t *testing.T) {
	t.Parallel()

	t.Run("nil result", func(t *testing.T) {
		t.Parallel()
		got := NormalizeSourceResult(nil, SourceCatalogANN)
		if got == nil || got.Candidates == nil || got.Queries == nil {
			t.Fatalf("expected empty non-nil lists, got %+v", got)
		}
		if got.Eligible() != 0 {
			t.Errorf("expected no candidates, got %d", got.Eligible())
		}
	})

	t.Run("lists and queries", func(t *testing.T) {
		t.Parallel()
		res := &models.SourceResult{
			Candidates:      []models.Candidate{{Name: "c"}},
			RelatedProducts: []models.Candidate{{Name: "r"}},
			Dupes:           []models.Candidate{{Name: "d"}},
			Queries:         []string{" q1 ", "", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9"},
			Meta:            map[string]any{"shard": "eu-1"},
		}
		got := NormalizeSourceResult(res, SourceCatalogANN)

		if got.Candidates[0].Source.Type != models.SourceTypeCatalogSearch {
			t.Errorf("expected catalog_search type, got %q", got.Candidates[0].Source.Type)
		}
		if got.RelatedProducts[0].Source.Type != models.SourceTypeOnPageRelated {
			t.Errorf("expected related products typed on_page_related, got %q", got.RelatedProducts[0].Source.Type)
		}
		if len(got.Queries) != models.MaxSourceQueries || got.Queries[0] != "q1" {
			t.Errorf("expected %d trimmed queries, got %v", models.MaxSourceQueries, got.Queries)
		}
		if got.Meta["shard"] != "eu-1" {
			t.Errorf("expected meta copied, got %v", got.Meta)
		}
	})
}
