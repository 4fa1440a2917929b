package runner

import (
	"context"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/torosent/volley/internal/metrics"
)

// AttemptResult is what an Attempter observed for one physical call.
// StatusCode is zero when no response was received.
type AttemptResult struct {
	StatusCode int
	Latency    time.Duration // zero means the dispatcher's own measurement is used
	Err        error
}

// Attempter performs one physical call for spec.
// Implementations must honor ctx, which carries the per-attempt deadline.
type Attempter interface {
	Attempt(ctx context.Context, spec RequestSpec) AttemptResult
}

// AttempterFunc adapts a function to the Attempter interface.
type AttempterFunc func(ctx context.Context, spec RequestSpec) AttemptResult

func (f AttempterFunc) Attempt(ctx context.Context, spec RequestSpec) AttemptResult {
	return f(ctx, spec)
}

// Observer receives each terminal outcome as soon as it is recorded.
// It is called from worker goroutines and must be safe for concurrent use.
type Observer interface {
	OnOutcome(o metrics.Outcome)
}

// Options configure the Coordinator and Dispatcher.
type Options struct {
	Retry RetryPolicy
	// Accept decides success from a status code. Defaults to status == 200.
	Accept func(statusCode int) bool
	// Preflight runs once before dispatch; an error aborts the run.
	Preflight func(ctx context.Context, cfg RunConfig) error
	Observer  Observer
	Logger    FailureLogger
	// HistogramBuckets defaults to metrics.DefaultHistogramBuckets.
	HistogramBuckets int
	LimiterFactory   func(rps int) *rate.Limiter // optional injection for tests
	NewRunID         func() string
}

func (o *Options) normalize() {
	if o.Accept == nil {
		o.Accept = func(code int) bool { return code == http.StatusOK }
	}
	if o.HistogramBuckets <= 0 {
		o.HistogramBuckets = metrics.DefaultHistogramBuckets
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			// Burst of one keeps pacing even across workers.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	if o.NewRunID == nil {
		o.NewRunID = func() string { return ulid.Make().String() }
	}
}
