package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/volley/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and prints a final line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer, ProgressLine(p.collector.Stats(time.Since(p.start))))
		return
	}
	p.ticker.Stop()
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			stats := p.collector.Stats(time.Since(p.start))
			fmt.Fprint(p.writer, ProgressLine(stats))
		case <-p.done:
			return
		}
	}
}

// ProgressLine renders a single carriage-return prefixed status line.
func ProgressLine(stats metrics.Stats) string {
	done := fmt.Sprintf("%d", stats.Total)
	if stats.Expected > 0 {
		done = fmt.Sprintf("%d/%d", stats.Total, stats.Expected)
	}
	return fmt.Sprintf("\rRequests: %s | Successes: %d | Failures: %d | RPS: %.1f",
		done, stats.Successes, stats.Failures, stats.RequestsPerSec)
}
