package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records terminal outcomes in a thread-safe manner while a run is
// in flight.
type Collector struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	expected  int
	successes int64
	failures  int64
	sum       time.Duration
	samples   int64
	kinds     map[ErrorKind]int64
	statuses  map[int]int
	start     time.Time
}

// Stats is a point-in-time view of a Collector.
type Stats struct {
	Expected       int                 `json:"expected"`
	Total          int64               `json:"total"`
	Successes      int64               `json:"successes"`
	Failures       int64               `json:"failures"`
	MeanLatency    time.Duration       `json:"-"`
	P50Latency     time.Duration       `json:"-"`
	P99Latency     time.Duration       `json:"-"`
	Duration       time.Duration       `json:"-"`
	RequestsPerSec float64             `json:"requests_per_sec"`
	MeanLatencyMs  float64             `json:"mean_latency_ms"`
	P50LatencyMs   float64             `json:"p50_latency_ms"`
	P99LatencyMs   float64             `json:"p99_latency_ms"`
	ErrorKinds     map[ErrorKind]int64 `json:"error_kinds,omitempty"`
	StatusCodes    map[int]int         `json:"status_codes,omitempty"`
}

// NewCollector creates a collector expecting the given number of outcomes.
// expected is informational and may be zero.
func NewCollector(expected int) *Collector {
	return &Collector{
		hist:     newLatencyHistogram(),
		expected: expected,
		kinds:    make(map[ErrorKind]int64),
		statuses: make(map[int]int),
		start:    time.Now(),
	}
}

// Start marks the beginning of the run for rate calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// OnOutcome records a terminal outcome.
func (c *Collector) OnOutcome(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency, ok := o.Latency(); ok {
		recordLatency(c.hist, latency)
		c.sum += latency
		c.samples++
	}
	if o.StatusCode != nil {
		c.statuses[*o.StatusCode]++
	}

	if o.Success {
		c.successes++
		return
	}
	c.failures++
	if o.ErrorKind != ErrorKindNone {
		c.kinds[o.ErrorKind]++
	}
}

// Stats computes current statistics. A non-positive elapsed uses the time
// since Start.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed <= 0 {
		elapsed = time.Since(c.start)
	}

	total := c.successes + c.failures
	stats := Stats{
		Expected:  c.expected,
		Total:     total,
		Successes: c.successes,
		Failures:  c.failures,
		Duration:  elapsed,
	}
	if c.samples > 0 {
		stats.MeanLatency = time.Duration(int64(c.sum) / c.samples)
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}
	if len(c.kinds) > 0 {
		stats.ErrorKinds = make(map[ErrorKind]int64, len(c.kinds))
		for k, v := range c.kinds {
			stats.ErrorKinds[k] = v
		}
	}
	if len(c.statuses) > 0 {
		stats.StatusCodes = make(map[int]int, len(c.statuses))
		for k, v := range c.statuses {
			stats.StatusCodes[k] = v
		}
	}
	return stats
}
