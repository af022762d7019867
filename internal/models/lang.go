// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

import "strings"

// Supported user-visible text locales.
const (
	LangEN = "EN"
	LangCN = "CN"
)

// NormalizeLang returns LangCN for any casing of "cn", else LangEN.
func NormalizeLang(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), LangCN) {
		return LangCN
	}
	return LangEN
}
