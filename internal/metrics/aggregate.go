package metrics

import (
	"errors"
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// DefaultHistogramBuckets is the bucket count used by Aggregate.
const DefaultHistogramBuckets = 20

// ErrEmptyResult is returned when aggregating an empty outcome collection.
var ErrEmptyResult = errors.New("cannot aggregate an empty result set")

// HistogramBucket counts latencies in [RangeStart, RangeEnd). The last bucket
// also includes RangeEnd.
type HistogramBucket struct {
	RangeStart float64 `json:"range_start" yaml:"range_start"`
	RangeEnd   float64 `json:"range_end" yaml:"range_end"`
	Count      int     `json:"count" yaml:"count"`
}

// Summary is the immutable statistical view of a finished run.
type Summary struct {
	Total                 int               `json:"total" yaml:"total"`
	Successful            int               `json:"successful" yaml:"successful"`
	Failed                int               `json:"failed" yaml:"failed"`
	FailureRatePct        float64           `json:"failure_rate_pct" yaml:"failure_rate_pct"`
	AverageLatencySeconds float64           `json:"average_latency_seconds" yaml:"average_latency_seconds"`
	Histogram             []HistogramBucket `json:"latency_histogram" yaml:"latency_histogram"`

	LatencySamples    int               `json:"latency_samples" yaml:"latency_samples"`
	MinLatencySeconds float64           `json:"min_latency_seconds" yaml:"min_latency_seconds"`
	MaxLatencySeconds float64           `json:"max_latency_seconds" yaml:"max_latency_seconds"`
	P50LatencySeconds float64           `json:"p50_latency_seconds" yaml:"p50_latency_seconds"`
	P90LatencySeconds float64           `json:"p90_latency_seconds" yaml:"p90_latency_seconds"`
	P95LatencySeconds float64           `json:"p95_latency_seconds" yaml:"p95_latency_seconds"`
	P99LatencySeconds float64           `json:"p99_latency_seconds" yaml:"p99_latency_seconds"`
	ErrorKinds        map[ErrorKind]int `json:"error_kinds,omitempty" yaml:"error_kinds,omitempty"`
	StatusCodes       map[int]int       `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
}

// Aggregate summarizes outcomes using DefaultHistogramBuckets.
func Aggregate(outcomes []Outcome) (Summary, error) {
	return AggregateWithBuckets(outcomes, DefaultHistogramBuckets)
}

// AggregateWithBuckets summarizes outcomes into a histogram with the given
// bucket count. Non-positive counts fall back to DefaultHistogramBuckets.
func AggregateWithBuckets(outcomes []Outcome, buckets int) (Summary, error) {
	if len(outcomes) == 0 {
		return Summary{}, ErrEmptyResult
	}
	if buckets <= 0 {
		buckets = DefaultHistogramBuckets
	}

	s := Summary{Total: len(outcomes)}
	latencies := make([]float64, 0, len(outcomes))
	var sum float64

	for _, o := range outcomes {
		if o.Success {
			s.Successful++
		} else {
			s.Failed++
			if o.ErrorKind != ErrorKindNone {
				if s.ErrorKinds == nil {
					s.ErrorKinds = make(map[ErrorKind]int)
				}
				s.ErrorKinds[o.ErrorKind]++
			}
		}
		if o.StatusCode != nil {
			if s.StatusCodes == nil {
				s.StatusCodes = make(map[int]int)
			}
			s.StatusCodes[*o.StatusCode]++
		}
		if o.LatencySeconds != nil {
			v := math.Max(*o.LatencySeconds, 0)
			latencies = append(latencies, v)
			sum += v
		}
	}

	s.FailureRatePct = float64(s.Failed) / float64(s.Total) * 100
	s.LatencySamples = len(latencies)
	if len(latencies) == 0 {
		return s, nil
	}

	s.AverageLatencySeconds = sum / float64(len(latencies))
	s.MinLatencySeconds, s.MaxLatencySeconds = bounds(latencies)
	s.Histogram = bucketize(latencies, s.MinLatencySeconds, s.MaxLatencySeconds, buckets)

	hist := newLatencyHistogram()
	for _, v := range latencies {
		recordLatency(hist, time.Duration(math.Round(v*float64(time.Second))))
	}
	s.P50LatencySeconds = quantileSeconds(hist, 50)
	s.P90LatencySeconds = quantileSeconds(hist, 90)
	s.P95LatencySeconds = quantileSeconds(hist, 95)
	s.P99LatencySeconds = quantileSeconds(hist, 99)

	return s, nil
}

func bounds(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func bucketize(values []float64, lo, hi float64, n int) []HistogramBucket {
	if hi == lo {
		return []HistogramBucket{{RangeStart: lo, RangeEnd: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(n)
	out := make([]HistogramBucket, n)
	for i := range out {
		out[i].RangeStart = lo + float64(i)*width
		out[i].RangeEnd = lo + float64(i+1)*width
	}
	out[n-1].RangeEnd = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

// Track latencies from 1µs up to 10min with 3 significant figures.
func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
}

func recordLatency(h *hdrhistogram.Histogram, latency time.Duration) {
	us := latency.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

func quantileSeconds(h *hdrhistogram.Histogram, q float64) float64 {
	if h.TotalCount() == 0 {
		return 0
	}
	return (time.Duration(h.ValueAtQuantile(q)) * time.Microsecond).Seconds()
}
