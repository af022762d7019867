// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package feedback records employee relevance labels from dogfood sessions.
//
// A Store keeps only the latest label per (session, anchor, block,
// candidate). Re-submitting the same judgement leaves the stored entry
// alone; a changed judgement replaces it. Entries live in a cache.Store,
// in memory by default or in a Badger namespace when the deployment has a
// cache directory.
//
// Every submission, duplicate or not, is also appended to a daily JSONL
// file when a sink directory is configured:
//
//	<dir>/recoblocks-employee-feedback-2026-10-18.jsonl
//
// Sink and persistence failures are logged and never fail the request.
package feedback
