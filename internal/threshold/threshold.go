// Package threshold checks pass/fail assertions such as
// "http_req_duration:p99 < 500" against a finished run.
package threshold

import (
	"fmt"
	"math"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/volley/internal/metrics"
)

const (
	MetricDuration = "http_req_duration" // milliseconds
	MetricFailed   = "http_req_failed"
	MetricRequests = "http_requests"
)

// aggregates lists the aggregates each metric supports.
var aggregates = map[string][]string{
	MetricDuration: {"avg", "mean", "min", "max", "p50", "p90", "p95", "p99"},
	MetricFailed:   {"count", "rate"},
	MetricRequests: {"count", "rate"},
}

const epsilon = 1e-9

var operators = map[string]func(actual, want float64) bool{
	"<":  func(a, w float64) bool { return a < w },
	"<=": func(a, w float64) bool { return a < w || math.Abs(a-w) < epsilon },
	">":  func(a, w float64) bool { return a > w },
	">=": func(a, w float64) bool { return a > w || math.Abs(a-w) < epsilon },
	"==": func(a, w float64) bool { return math.Abs(a-w) < epsilon },
}

var expr = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Threshold is one parsed assertion.
type Threshold struct {
	Metric    string
	Aggregate string
	Operator  string
	Value     float64
	Raw       string
}

// Result is the outcome of checking one Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Measurements is the view of a finished run that thresholds are checked against.
type Measurements struct {
	Summary  metrics.Summary
	Duration time.Duration
}

// Parse reads "metric:aggregate operator value".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}
	m := expr.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format %q, want metric:aggregate operator value (e.g. 'http_req_duration:p99 < 500')", s)
	}
	t := Threshold{Metric: m[1], Aggregate: m[2], Operator: m[3], Raw: s}

	supported, ok := aggregates[t.Metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", t.Metric, strings.Join(slices.Sorted(maps.Keys(aggregates)), ", "))
	}
	if !slices.Contains(supported, t.Aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", t.Aggregate, t.Metric, strings.Join(supported, ", "))
	}
	if _, ok := operators[t.Operator]; !ok {
		return Threshold{}, fmt.Errorf("unsupported operator %q (supported: <, <=, >, >=, ==)", t.Operator)
	}
	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", m[4], err)
	}
	t.Value = v
	return t, nil
}

// ParseMultiple parses every entry and reports all failures together.
func ParseMultiple(raw []string) ([]Threshold, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Threshold, 0, len(raw))
	var problems []string
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

// Evaluator checks a fixed set of thresholds.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate returns one Result per threshold, in order. A threshold whose
// metric cannot be computed fails.
func (e *Evaluator) Evaluate(m Measurements) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, len(e.thresholds))
	for i, t := range e.thresholds {
		results[i] = evaluate(t, m)
	}
	return results
}

func evaluate(t Threshold, m Measurements) Result {
	actual, err := extractMetricValue(t, m)
	if err != nil {
		return Result{Threshold: t, Message: fmt.Sprintf("✗ %s: %v", t.Raw, err)}
	}
	pass := compareValues(actual, t.Operator, t.Value)
	mark := "✓"
	if !pass {
		mark = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s (actual %.2f)", mark, t.Raw, actual),
	}
}

func extractMetricValue(t Threshold, m Measurements) (float64, error) {
	s := m.Summary
	switch t.Metric {
	case MetricDuration:
		return latencyMs(t.Aggregate, s)
	case MetricFailed:
		switch t.Aggregate {
		case "count":
			return float64(s.Failed), nil
		case "rate":
			if s.Total == 0 {
				return 0, nil
			}
			return float64(s.Failed) / float64(s.Total), nil
		}
	case MetricRequests:
		switch t.Aggregate {
		case "count":
			return float64(s.Total), nil
		case "rate":
			if m.Duration <= 0 {
				return 0, nil
			}
			return float64(s.Total) / m.Duration.Seconds(), nil
		}
	default:
		return 0, fmt.Errorf("unknown metric %q", t.Metric)
	}
	return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
}

func latencyMs(aggregate string, s metrics.Summary) (float64, error) {
	if s.LatencySamples == 0 {
		return 0, fmt.Errorf("no latency samples recorded")
	}
	var v float64
	switch aggregate {
	case "avg", "mean":
		v = s.AverageLatencySeconds
	case "min":
		v = s.MinLatencySeconds
	case "max":
		v = s.MaxLatencySeconds
	case "p50":
		v = s.P50LatencySeconds
	case "p90":
		v = s.P90LatencySeconds
	case "p95":
		v = s.P95LatencySeconds
	case "p99":
		v = s.P99LatencySeconds
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, MetricDuration)
	}
	return v * 1000, nil
}

func compareValues(actual float64, operator string, want float64) bool {
	cmp, ok := operators[operator]
	return ok && cmp(actual, want)
}
