package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/volley/internal/metrics"
	"github.com/torosent/volley/internal/runner"
)

func sampleResult(t *testing.T) *runner.RunResult {
	t.Helper()
	outcomes := []metrics.Outcome{
		{Index: 0, StatusCode: metrics.IntPtr(200), LatencySeconds: metrics.Float64Ptr(0.010), Success: true, Attempts: 1},
		{Index: 1, StatusCode: metrics.IntPtr(200), LatencySeconds: metrics.Float64Ptr(0.030), Success: true, Attempts: 1},
		{Index: 2, StatusCode: metrics.IntPtr(500), LatencySeconds: metrics.Float64Ptr(0.020), ErrorKind: metrics.ErrorKindNonSuccessStatus, Attempts: 1},
		{Index: 3, ErrorKind: metrics.ErrorKindTimeout, Attempts: 4},
	}
	summary, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	return &runner.RunResult{
		RunID:    "01HZTESTRUN",
		Config:   runner.RunConfig{TargetURL: "http://localhost:8080/ok", Method: runner.MethodGet, Concurrency: 2, Retries: 3, TotalRequests: 4},
		Outcomes: outcomes,
		Summary:  summary,
		Started:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration: 2 * time.Second,
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleResult(t))

	output := buf.String()
	for _, want := range []string{
		"Run ID:            01HZTESTRUN",
		"Total Requests:    4",
		"Successful:        2",
		"Failed:            2",
		"Failure Rate:      50.00%",
		"Requests/sec:      2.00",
		"Average:         20ms",
		"500: 1",
		"Request timed out: 1",
		"Latency Histogram:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "cancelled") {
		t.Errorf("did not expect cancellation notice")
	}
}

func TestPrintReportCancelledWithoutLatency(t *testing.T) {
	outcomes := []metrics.Outcome{metrics.CancelledOutcome(0, 0)}
	summary, err := metrics.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	res := &runner.RunResult{Outcomes: outcomes, Summary: summary, Cancelled: true}

	var buf bytes.Buffer
	PrintReport(&buf, res)
	output := buf.String()
	if !strings.Contains(output, "No latency samples") {
		t.Errorf("expected no latency notice, got:\n%s", output)
	}
	if !strings.Contains(output, "Run was cancelled") {
		t.Errorf("expected cancellation notice, got:\n%s", output)
	}
	if strings.Contains(output, "Latency Histogram") {
		t.Errorf("histogram should be omitted without samples")
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleResult(t)); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["run_id"] != "01HZTESTRUN" {
		t.Errorf("unexpected run_id: %v", decoded["run_id"])
	}
	summary, ok := decoded["summary"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected summary object, got %T", decoded["summary"])
	}
	if summary["failure_rate_pct"] != 50.0 {
		t.Errorf("unexpected failure rate: %v", summary["failure_rate_pct"])
	}
	if hist, ok := summary["latency_histogram"].([]interface{}); !ok || len(hist) != metrics.DefaultHistogramBuckets {
		t.Errorf("expected %d histogram buckets, got %v", metrics.DefaultHistogramBuckets, summary["latency_histogram"])
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleResult(t)); err != nil {
		t.Fatalf("PrintYAMLReport failed: %v", err)
	}

	var decoded struct {
		RunID   string `yaml:"run_id"`
		Target  string `yaml:"target"`
		Summary struct {
			Total  int `yaml:"total"`
			Failed int `yaml:"failed"`
		} `yaml:"summary"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded.RunID != "01HZTESTRUN" || decoded.Target != "http://localhost:8080/ok" {
		t.Errorf("unexpected header fields: %+v", decoded)
	}
	if decoded.Summary.Total != 4 || decoded.Summary.Failed != 2 {
		t.Errorf("unexpected summary: %+v", decoded.Summary)
	}
}

func TestWriteHistogramScalesToPeak(t *testing.T) {
	var buf bytes.Buffer
	writeHistogram(&buf, []metrics.HistogramBucket{
		{RangeStart: 0.01, RangeEnd: 0.02, Count: 4},
		{RangeStart: 0.02, RangeEnd: 0.03, Count: 2},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if got := strings.Count(lines[0], "#"); got != histogramBarWidth {
		t.Errorf("expected full bar for peak bucket, got %d", got)
	}
	if got := strings.Count(lines[1], "#"); got != histogramBarWidth/2 {
		t.Errorf("expected half bar, got %d", got)
	}
}
