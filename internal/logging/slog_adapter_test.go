// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSlogHandler_WritesAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(NewTestLogger(&buf)))

	logger.With("service", "enrich").
		WithGroup("supervisor").
		Warn("service restarted", "restarts", 3, "backoff", 2*time.Second)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"service":"enrich"`,
		`"supervisor.restarts":3`,
		`"message":"service restarted"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s, got: %s", want, out)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	if got := slogToZerologLevel(slog.LevelError + 4); got.String() != "error" {
		t.Errorf("expected error, got %s", got)
	}
	if got := slogToZerologLevel(slog.LevelDebug); got.String() != "debug" {
		t.Errorf("expected debug, got %s", got)
	}
}
