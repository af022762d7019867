// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"testing"

	"github.com/tomtom215/recoblocks/internal/models"
)

func TestNormalizeOnPageMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", OnPageFallbackOnly},
		{"fallback_only", OnPageFallbackOnly},
		{"ALWAYS", OnPageAlways},
		{" disabled ", OnPageDisabled},
		{"sometimes", OnPageFallbackOnly},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeOnPageMode(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDefaultSourceType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source   string
		expected string
	}{
		{SourceCatalogANN, models.SourceTypeCatalogSearch},
		{SourceIngredientIndex, models.SourceTypeIngredientIndex},
		{SourceKBBackfill, models.SourceTypeKBBackfill},
		{SourceOnPageRelated, models.SourceTypeOnPageRelated},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()
			if got := DefaultSourceType(tt.source); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsKnownSource(t *testing.T) {
	t.Parallel()

	for _, name := range SourceNames {
		if !IsKnownSource(name) {
			t.Errorf("expected %s to be known", name)
		}
	}
	if IsKnownSource("catalog") {
		t.Error("expected catalog to be unknown")
	}
}

func TestResult_Block(t *testing.T) {
	t.Parallel()

	var r Result
	for i, block := range models.Blocks {
		items := []models.Candidate{{ProductID: block}}
		r.SetBlock(block, items)
		got := r.Block(block)
		if len(got) != 1 || got[0].ProductID != models.Blocks[i] {
			t.Errorf("expected %s round trip, got %v", block, got)
		}
	}

	r.SetBlock("bogus", []models.Candidate{{ProductID: "x"}})
	if r.Block("bogus") != nil {
		t.Error("expected nil for unknown block")
	}
	if len(r.Competitors) != 1 || r.Competitors[0].ProductID != models.BlockCompetitors {
		t.Errorf("expected unknown block to leave competitors untouched, got %v", r.Competitors)
	}
}
