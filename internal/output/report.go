package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/volley/internal/metrics"
	"github.com/torosent/volley/internal/runner"
)

const histogramBarWidth = 40

// Report is the serializable view of a finished run.
type Report struct {
	RunID           string          `json:"run_id" yaml:"run_id"`
	Target          string          `json:"target" yaml:"target"`
	Method          string          `json:"method" yaml:"method"`
	Concurrency     int             `json:"concurrency" yaml:"concurrency"`
	Retries         int             `json:"retries" yaml:"retries"`
	StartedAt       time.Time       `json:"started_at" yaml:"started_at"`
	DurationSeconds float64         `json:"duration_seconds" yaml:"duration_seconds"`
	RequestsPerSec  float64         `json:"requests_per_sec" yaml:"requests_per_sec"`
	Cancelled       bool            `json:"cancelled" yaml:"cancelled"`
	Summary         metrics.Summary `json:"summary" yaml:"summary"`
}

// NewReport builds a Report from a run result.
func NewReport(res *runner.RunResult) Report {
	r := Report{
		RunID:           res.RunID,
		Target:          res.Config.TargetURL,
		Method:          string(res.Config.Method),
		Concurrency:     res.Config.Concurrency,
		Retries:         res.Config.Retries,
		StartedAt:       res.Started.UTC(),
		DurationSeconds: res.Duration.Seconds(),
		Cancelled:       res.Cancelled,
		Summary:         res.Summary,
	}
	if res.Duration > 0 {
		r.RequestsPerSec = float64(res.Summary.Total) / res.Duration.Seconds()
	}
	return r
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, res *runner.RunResult) {
	r := NewReport(res)
	s := r.Summary

	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "Target:            %s %s\n", r.Method, r.Target)
	fmt.Fprintf(w, "Total Requests:    %d\n", s.Total)
	fmt.Fprintf(w, "Successful:        %d\n", s.Successful)
	fmt.Fprintf(w, "Failed:            %d\n", s.Failed)
	fmt.Fprintf(w, "Failure Rate:      %.2f%%\n", s.FailureRatePct)
	fmt.Fprintf(w, "Duration:          %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", r.RequestsPerSec)

	fmt.Fprintln(w, "\nLatency:")
	if s.LatencySamples == 0 {
		fmt.Fprintln(w, "  No latency samples")
	} else {
		fmt.Fprintf(w, "  Average:         %s\n", seconds(s.AverageLatencySeconds))
		fmt.Fprintf(w, "  Min:             %s\n", seconds(s.MinLatencySeconds))
		fmt.Fprintf(w, "  Max:             %s\n", seconds(s.MaxLatencySeconds))
		fmt.Fprintf(w, "  P50:             %s\n", seconds(s.P50LatencySeconds))
		fmt.Fprintf(w, "  P90:             %s\n", seconds(s.P90LatencySeconds))
		fmt.Fprintf(w, "  P99:             %s\n", seconds(s.P99LatencySeconds))
	}

	if rows := metrics.FlattenStatusCodes(s.StatusCodes); len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %d: %d\n", row.Code, row.Count)
		}
	}

	if rows := metrics.FlattenErrorKinds(s.ErrorKinds); len(rows) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyKindName(row.Kind), row.Count)
		}
	}

	if len(s.Histogram) > 0 {
		fmt.Fprintln(w, "\nLatency Histogram:")
		writeHistogram(w, s.Histogram)
	}

	if r.Cancelled {
		fmt.Fprintln(w, "\nRun was cancelled before all requests completed.")
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, res *runner.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(res))
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, res *runner.RunResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewReport(res)); err != nil {
		return err
	}
	return enc.Close()
}

func writeHistogram(w io.Writer, buckets []metrics.HistogramBucket) {
	peak := 0
	for _, b := range buckets {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range buckets {
		bar := 0
		if peak > 0 {
			bar = b.Count * histogramBarWidth / peak
		}
		fmt.Fprintf(w, "  %10s - %-10s |%-*s| %d\n",
			seconds(b.RangeStart), seconds(b.RangeEnd),
			histogramBarWidth, strings.Repeat("#", bar), b.Count)
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second)).Round(time.Microsecond)
}
