// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package textsim provides the token and set-overlap helpers shared by the
// router, the normalizer and the scorer.
package textsim

import (
	"regexp"
	"strings"
)

var (
	pathSeparators  = regexp.MustCompile(`[>/_|]+`)
	punctSeparators = regexp.MustCompile(`[,:;()\[\]{}]+`)
	nonAlnum        = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// CategoryTokens splits a category or taxonomy path ("Skincare > Serums")
// into unique lowercase tokens.
func CategoryTokens(s string) []string {
	text := pathSeparators.ReplaceAllString(s, " ")
	text = punctSeparators.ReplaceAllString(text, " ")
	return Uniq(strings.Fields(strings.ToLower(text)))
}

// CategoryTokensFrom tokenizes every value and merges the results.
func CategoryTokensFrom(values ...string) []string {
	var out []string
	for _, v := range values {
		out = append(out, CategoryTokens(v)...)
	}
	return Uniq(out)
}

// IngredientTokens splits ingredient names on non-alphanumerics.
func IngredientTokens(items []string) []string {
	var out []string
	for _, item := range items {
		for _, tok := range nonAlnum.Split(strings.ToLower(item), -1) {
			if tok != "" {
				out = append(out, tok)
			}
		}
	}
	return Uniq(out)
}

// Jaccard returns |a ∩ b| / |a ∪ b|. ok is false when either set is empty.
func Jaccard(a, b []string) (score float64, ok bool) {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0, false
	}

	intersection := 0
	for tok := range setA {
		if _, found := setB[tok]; found {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0, false
	}
	return float64(intersection) / float64(union), true
}

// Uniq trims values and drops empties and repeats, keeping first-seen order.
func Uniq(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
