// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package recommend implements the blocks scheduler: it computes the
// competitors, related products and dupes blocks for one anchor product.
//
// # Architecture
//
// A request moves through four stages under a single time budget:
//
//   - Dispatch: the primary sources (catalog_ann, ingredient_index,
//     skin_fit_light, kb_backfill, dupe_pipeline) run concurrently, each
//     bounded by min(per-source timeout, remaining budget)
//   - Route: merged candidates are coarse reranked and passed through the
//     hard gates in package routing
//   - Fallback: kb_backfill and catalog_ann are retried for competitors,
//     on_page_related fills an empty related block, and kb dupes fill an
//     empty dupes block
//   - Finalize: each block is deduplicated, scored by the registered
//     rerankers and cut to max_candidates, with optional dogfood
//     interleaving and exploration slots
//
// Failures never abort a request. A source that errors, times out or is
// not configured yields an empty contribution, and the degradation is
// reported in Diagnostics, Provenance and per-block Confidence.
//
// # Usage
//
//	engine, err := recommend.NewEngine(cfg, logger)
//	if err != nil {
//	    return err
//	}
//
//	engine.RegisterSource(recommend.SourceCatalogANN, catalogSource)
//	engine.RegisterReranker(reranking.NewScorer())
//	engine.SetTrackingSink(trackingStore)
//
//	result := engine.RecoBlocks(ctx, recommend.Request{
//	    Anchor:    anchor,
//	    RequestID: requestID,
//	    SessionID: sessionID,
//	})
//
// # Thread Safety
//
// The engine is safe for concurrent use. Registration takes an exclusive
// lock; requests only read the registered sources and rerankers.
package recommend
