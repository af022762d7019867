// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package middleware

import (
	"net/http"
	"strings"

	"github.com/tomtom215/recoblocks/internal/logging"
)

// Header names carrying request correlation.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"
)

// maxHeaderIDLen bounds client supplied ids before they reach logs.
const maxHeaderIDLen = 128

// RequestID assigns a request id to every request. An upstream X-Request-ID
// is reused when present and sane, otherwise a UUID is generated. The id is
// echoed in the response and stored in the logging context together with
// an optional X-Session-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitizeID(r.Header.Get(HeaderRequestID))
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		if sessionID := sanitizeID(r.Header.Get(HeaderSessionID)); sessionID != "" {
			ctx = logging.ContextWithSessionID(ctx, sessionID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sanitizeID trims id and rejects oversized or non-printable values.
func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxHeaderIDLen {
		return ""
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}
