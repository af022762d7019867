// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestWatermillAdapter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	adapter := NewWatermillAdapter(NewTestLogger(&buf)).
		With(watermill.LogFields{"topic": "reco.social.enrich"})

	adapter.Error("publish failed", errors.New("closed"), watermill.LogFields{"uuid": "m-1"})
	adapter.Info("subscribed", nil)

	out := buf.String()
	for _, want := range []string{
		`"component":"watermill"`,
		`"topic":"reco.social.enrich"`,
		`"uuid":"m-1"`,
		`"error":"closed"`,
		`"message":"subscribed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s, got: %s", want, out)
		}
	}
}
