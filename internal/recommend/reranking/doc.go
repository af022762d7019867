// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package reranking scores routed candidates per block and attaches the
// user-visible explanation for each one.
//
// # Overview
//
// Reranking runs after the hard-gate router has assigned candidates to
// blocks:
//
//	Sources -> Router -> Scorer -> Interleave/Explore -> Response
//	                    (features, explanation, evidence)
//
// # Scoring
//
// ComputeFeatures builds a [0,1] feature vector per candidate. Values a
// source already placed in score_breakdown take precedence. Each block
// has fixed Weights, and score_total is the clamped weighted sum:
//
//	competitors: category .30, ingredient .22, skin .18, social .15, price .10, quality .05
//	dupes:       category .28, ingredient .22, skin .15, social .10, price .25
//	related:     brand_affinity .45, co_view .35, kb_routine .20
//
// # Explanations
//
// The three largest weighted contributions select the reason sentences
// and the one-line summary. EN and CN texts are supported. Every text
// that reaches a user passes through SanitizeText, which strips internal
// routing tokens.
//
// # Social Summaries
//
// BuildSocialSummary turns a raw social signal into themes, a volume
// bucket, top keywords and a sentiment hint. Themes are detected with a
// multi-pattern keyword automaton, so adding patterns does not slow
// matching down.
//
// # Thread Safety
//
// Scorer is stateless. The theme automaton is built once at package init
// and only read afterwards.
//
// # Usage Example
//
//	scorer := reranking.NewScorer()
//	engine.RegisterReranker(scorer)
//
//	scored := scorer.Score(models.BlockDupes, &anchor, dupes, models.LangEN)
package reranking
