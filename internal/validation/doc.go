// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

// Package validation provides struct validation using go-playground/validator v10.
//
// It wraps a thread-safe singleton validator with the Recoblocks custom tags
// and translates failures into the API error envelope.
//
// # Overview
//
// The package provides:
//   - A singleton validator (struct info cached once) with WithRequiredStructEnabled
//   - JSON field names in error paths, e.g. "anchor.product_id"
//   - Human-readable messages per tag
//   - Conversion to models.APIError with code VALIDATION_ERROR
//
// # Quick Start
//
//	type ClickRequest struct {
//	    Block     string `json:"block" validate:"required,block"`
//	    RequestID string `json:"request_id" validate:"required,max=128"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondAPIError(w, r, http.StatusBadRequest, verr.ToAPIError())
//	    return
//	}
//
// # Custom Tags
//
//   - block: competitors, related_products or dupes
//   - social_channel: a whitelisted social channel or a known alias
//   - lang: EN or CN, any casing
//
// # Error Details
//
// A single failure carries field, tag and value under details. Several
// failures are listed under details.fields, each with field, tag and message.
package validation
