// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package metrics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getHistogram extracts the sample count and sum from a histogram observer.
func getHistogram(t *testing.T, observer prometheus.Observer) (count uint64, sum float64) {
	t.Helper()
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T is not a metric", observer)
	}
	var m io_prometheus_client.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

func TestRecordSourceCall(t *testing.T) {
	before := testutil.ToFloat64(SourceCalls.WithLabelValues("catalog_ann", "timeout"))

	RecordSourceCall("catalog_ann", "timeout", 450*time.Millisecond)

	after := testutil.ToFloat64(SourceCalls.WithLabelValues("catalog_ann", "timeout"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordSourceCall_Latency(t *testing.T) {
	tests := []struct {
		name      string
		duration  time.Duration
		wantCount uint64
	}{
		{"observed", 250 * time.Millisecond, 1},
		{"skipped without duration", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "latency_" + strings.ReplaceAll(tt.name, " ", "_")
			beforeCount, beforeSum := getHistogram(t, SourceLatency.WithLabelValues(source))

			RecordSourceCall(source, "ok", tt.duration)

			count, sum := getHistogram(t, SourceLatency.WithLabelValues(source))
			if count != beforeCount+tt.wantCount {
				t.Errorf("expected %d samples, got %d", beforeCount+tt.wantCount, count)
			}
			if want := beforeSum + tt.duration.Seconds(); math.Abs(sum-want) > 1e-9 {
				t.Errorf("expected sum %v, got %v", want, sum)
			}
		})
	}
}

func TestRecordFallback(t *testing.T) {
	before := testutil.ToFloat64(FallbacksUsed.WithLabelValues("kb_backfill_dupes"))
	RecordFallback("kb_backfill_dupes")
	after := testutil.ToFloat64(FallbacksUsed.WithLabelValues("kb_backfill_dupes"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordBlock(t *testing.T) {
	before := testutil.ToFloat64(BlocksServed.WithLabelValues("dupes"))
	RecordBlock("dupes", 3, 0.6)
	after := testutil.ToFloat64(BlocksServed.WithLabelValues("dupes"))
	if after != before+3 {
		t.Errorf("expected counter to increase by 3, got %v -> %v", before, after)
	}

	count, _ := getHistogram(t, BlockConfidence.WithLabelValues("dupes"))
	if count == 0 {
		t.Error("expected confidence to be observed")
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("metrics_test"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("metrics_test"))

	RecordCacheLookup("metrics_test", true)
	RecordCacheLookup("metrics_test", false)
	RecordCacheLookup("metrics_test", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("metrics_test")); got != hits+1 {
		t.Errorf("expected hits %v, got %v", hits+1, got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("metrics_test")); got != misses+2 {
		t.Errorf("expected misses %v, got %v", misses+2, got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("expected gauge %v, got %v", before+1, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("expected gauge %v, got %v", before, got)
	}
}
