// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package config

import (
	"fmt"
	"net/url"
)

// validateOrigin validates a CORS origin: either "*" or an http(s) scheme
// and host with no path, query or fragment.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}

	parsedURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%q failed to parse URL: %w", origin, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%q scheme must be http or https, got: %s", origin, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%q host is required", origin)
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%q should be an origin only, remove path: %s", origin, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return fmt.Errorf("%q should not contain query or fragment", origin)
	}

	return nil
}
