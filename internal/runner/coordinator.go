package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/torosent/volley/internal/metrics"
)

// RunResult is the complete outcome of a run.
type RunResult struct {
	RunID     string
	Config    RunConfig
	Outcomes  []metrics.Outcome // ordered by index
	Summary   metrics.Summary
	Started   time.Time
	Duration  time.Duration
	Cancelled bool // at least one request was cut short by cancellation
}

// Coordinator turns a RunConfig into a finished RunResult.
type Coordinator struct {
	attempter Attempter
	opt       Options
}

func NewCoordinator(attempter Attempter, opt Options) *Coordinator {
	opt.normalize()
	return &Coordinator{attempter: attempter, opt: opt}
}

// Run validates cfg, dispatches TotalRequests logical requests and aggregates
// their outcomes. It blocks until every index has a terminal outcome. Errors
// are only returned for problems detected before the first request is sent.
func (c *Coordinator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if c.attempter == nil {
		return nil, errors.New("runner: attempter is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	if c.opt.Preflight != nil {
		if err := c.opt.Preflight(ctx, cfg); err != nil {
			return nil, &PreflightError{Target: cfg.TargetURL, Err: err}
		}
	}

	opt := c.opt
	opt.Retry.MaxRetries = cfg.Retries
	dispatcher := NewDispatcher(c.attempter, cfg.Concurrency, cfg.RatePerSecond, opt)
	specs := BuildRequestSpecs(cfg)

	start := time.Now()
	outcomes := dispatcher.Dispatch(ctx, specs)
	elapsed := time.Since(start)

	if err := checkComplete(outcomes, cfg.TotalRequests); err != nil {
		return nil, err
	}

	summary, err := metrics.AggregateWithBuckets(outcomes, opt.HistogramBuckets)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	return &RunResult{
		RunID:     opt.NewRunID(),
		Config:    cfg,
		Outcomes:  outcomes,
		Summary:   summary,
		Started:   start,
		Duration:  elapsed,
		Cancelled: summary.ErrorKinds[metrics.ErrorKindCancelled] > 0,
	}, nil
}

// checkComplete asserts every index in [0, n) appears exactly once.
func checkComplete(outcomes []metrics.Outcome, n int) error {
	if len(outcomes) != n {
		return fmt.Errorf("runner: expected %d outcomes, got %d", n, len(outcomes))
	}
	seen := make([]bool, n)
	for _, o := range outcomes {
		if o.Index < 0 || o.Index >= n {
			return fmt.Errorf("runner: outcome index %d out of range", o.Index)
		}
		if seen[o.Index] {
			return fmt.Errorf("runner: duplicate outcome for index %d", o.Index)
		}
		seen[o.Index] = true
	}
	return nil
}
