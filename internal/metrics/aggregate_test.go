package metrics_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/torosent/volley/internal/metrics"
)

func ok(index int, latency float64) metrics.Outcome {
	return metrics.Outcome{
		Index:          index,
		StatusCode:     metrics.IntPtr(200),
		LatencySeconds: metrics.Float64Ptr(latency),
		Success:        true,
		Attempts:       1,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAggregateEmptyFails(t *testing.T) {
	_, err := metrics.Aggregate(nil)
	if !errors.Is(err, metrics.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	_, err = metrics.Aggregate([]metrics.Outcome{})
	if !errors.Is(err, metrics.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult for empty slice, got %v", err)
	}
}

func TestAggregateExcludesMissingLatencies(t *testing.T) {
	outcomes := []metrics.Outcome{
		ok(0, 0.1),
		{Index: 1, Success: false, ErrorKind: metrics.ErrorKindConnection, Attempts: 1},
	}
	s, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Total != 2 || s.Successful != 1 || s.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.FailureRatePct != 50.0 {
		t.Errorf("expected failure rate 50, got %v", s.FailureRatePct)
	}
	if s.AverageLatencySeconds != 0.1 {
		t.Errorf("expected average 0.1, got %v", s.AverageLatencySeconds)
	}
	if s.LatencySamples != 1 {
		t.Errorf("expected 1 latency sample, got %d", s.LatencySamples)
	}
	if s.ErrorKinds[metrics.ErrorKindConnection] != 1 {
		t.Errorf("expected connection error counted, got %v", s.ErrorKinds)
	}
}

func TestAggregateNoLatenciesDoesNotDivideByZero(t *testing.T) {
	outcomes := []metrics.Outcome{
		{Index: 0, ErrorKind: metrics.ErrorKindTimeout},
		{Index: 1, ErrorKind: metrics.ErrorKindTimeout},
	}
	s, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(s.AverageLatencySeconds) || s.AverageLatencySeconds != 0 {
		t.Errorf("expected zero average, got %v", s.AverageLatencySeconds)
	}
	if s.FailureRatePct != 100 {
		t.Errorf("expected 100%% failures, got %v", s.FailureRatePct)
	}
	if len(s.Histogram) != 0 {
		t.Errorf("expected no histogram buckets, got %d", len(s.Histogram))
	}
}

func TestAggregateCountsInvariant(t *testing.T) {
	var outcomes []metrics.Outcome
	for i := 0; i < 37; i++ {
		o := ok(i, float64(i)/100)
		if i%3 == 0 {
			o.Success = false
			o.ErrorKind = metrics.ErrorKindNonSuccessStatus
			o.StatusCode = metrics.IntPtr(500)
		}
		outcomes = append(outcomes, o)
	}
	s, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Successful+s.Failed != s.Total {
		t.Fatalf("successful+failed != total: %+v", s)
	}
	if s.StatusCodes[500] != 13 || s.StatusCodes[200] != 24 {
		t.Errorf("unexpected status codes: %v", s.StatusCodes)
	}
}

func TestAggregateHistogramSpansRange(t *testing.T) {
	var outcomes []metrics.Outcome
	for i := 0; i <= 100; i++ {
		outcomes = append(outcomes, ok(i, float64(i)/100))
	}
	s, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Histogram) != metrics.DefaultHistogramBuckets {
		t.Fatalf("expected %d buckets, got %d", metrics.DefaultHistogramBuckets, len(s.Histogram))
	}
	if s.Histogram[0].RangeStart != 0 {
		t.Errorf("first bucket should start at min, got %v", s.Histogram[0].RangeStart)
	}
	if s.Histogram[len(s.Histogram)-1].RangeEnd != 1 {
		t.Errorf("last bucket should end at max, got %v", s.Histogram[len(s.Histogram)-1].RangeEnd)
	}
	total := 0
	for i, b := range s.Histogram {
		if b.RangeEnd < b.RangeStart {
			t.Errorf("bucket %d inverted: %+v", i, b)
		}
		total += b.Count
	}
	if total != len(outcomes) {
		t.Errorf("histogram lost samples: %d of %d", total, len(outcomes))
	}
	if !approx(s.MinLatencySeconds, 0) || !approx(s.MaxLatencySeconds, 1) {
		t.Errorf("unexpected min/max: %v %v", s.MinLatencySeconds, s.MaxLatencySeconds)
	}
	if s.P50LatencySeconds < 0.49 || s.P50LatencySeconds > 0.51 {
		t.Errorf("expected p50 ~0.5s, got %v", s.P50LatencySeconds)
	}
}

func TestAggregateEqualLatenciesUseSingleBucket(t *testing.T) {
	outcomes := []metrics.Outcome{ok(0, 0.25), ok(1, 0.25), ok(2, 0.25)}
	s, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Histogram) != 1 {
		t.Fatalf("expected a single bucket, got %d", len(s.Histogram))
	}
	if s.Histogram[0].Count != 3 {
		t.Errorf("expected all samples in the bucket, got %d", s.Histogram[0].Count)
	}
}

func TestAggregateWithBucketsFallsBackToDefault(t *testing.T) {
	outcomes := []metrics.Outcome{ok(0, 0.1), ok(1, 0.2)}
	s, err := metrics.AggregateWithBuckets(outcomes, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Histogram) != metrics.DefaultHistogramBuckets {
		t.Errorf("expected default bucket count, got %d", len(s.Histogram))
	}
	s, _ = metrics.AggregateWithBuckets(outcomes, 4)
	if len(s.Histogram) != 4 {
		t.Errorf("expected 4 buckets, got %d", len(s.Histogram))
	}
}

func TestSummaryJSONSchema(t *testing.T) {
	s, err := metrics.Aggregate([]metrics.Outcome{ok(0, 0.1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"total", "successful", "failed", "failure_rate_pct", "average_latency_seconds", "latency_histogram"} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("missing %s in JSON", key)
		}
	}
}
