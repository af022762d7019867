// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

import "math"

// Clamp01 bounds v to [0,1]. NaN and infinities map to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

// Norm01 normalizes a score that may be expressed on a 0-100 scale.
// Values above 1 are divided by 100 before clamping.
func Norm01(v float64) float64 {
	if v > 1 {
		return Clamp01(v / 100)
	}
	return Clamp01(v)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
