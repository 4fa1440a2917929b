package runner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/torosent/volley/internal/metrics"
	"github.com/torosent/volley/internal/runner"
)

// flakyAttempter fails the first failUntil attempts of every index.
type flakyAttempter struct {
	mu        sync.Mutex
	attempts  map[int]int
	failUntil int
	fail      func(attempt int) runner.AttemptResult
}

func newFlaky(failUntil int, fail func(attempt int) runner.AttemptResult) *flakyAttempter {
	return &flakyAttempter{attempts: map[int]int{}, failUntil: failUntil, fail: fail}
}

func (f *flakyAttempter) Attempt(ctx context.Context, spec runner.RequestSpec) runner.AttemptResult {
	f.mu.Lock()
	f.attempts[spec.Index]++
	n := f.attempts[spec.Index]
	f.mu.Unlock()
	if spec.Attempt != n-1 {
		return runner.AttemptResult{Err: errors.New("attempt counter out of sync")}
	}
	if n <= f.failUntil {
		return f.fail(n)
	}
	return runner.AttemptResult{StatusCode: 200, Latency: time.Millisecond}
}

func connRefused(int) runner.AttemptResult {
	return runner.AttemptResult{Err: errors.New("dial tcp: connection refused")}
}

// TestRetrySucceedsAfterTransientFailures verifies the terminal outcome reflects the last attempt.
func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	att := newFlaky(2, connRefused)
	cfg := baseConfig(3, 3)
	cfg.Retries = 3
	res, err := runner.NewCoordinator(att, runner.Options{}).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range res.Outcomes {
		if !o.Success {
			t.Errorf("index %d: expected success after retries, got %+v", o.Index, o)
		}
		if o.Attempts != 3 {
			t.Errorf("index %d: expected 3 attempts, got %d", o.Index, o.Attempts)
		}
		if o.LatencySeconds == nil {
			t.Errorf("index %d: expected latency from the successful attempt", o.Index)
		}
	}
}

// TestRetryExhaustion verifies exactly retries+1 attempts for a request that always fails.
func TestRetryExhaustion(t *testing.T) {
	att := newFlaky(100, connRefused)
	cfg := baseConfig(1, 1)
	cfg.Retries = 4
	res, err := runner.NewCoordinator(att, runner.Options{}).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.attempts[0] != 5 {
		t.Fatalf("expected 5 attempts, got %d", att.attempts[0])
	}
	o := res.Outcomes[0]
	if o.Success || o.ErrorKind != metrics.ErrorKindConnection || o.Attempts != 5 {
		t.Fatalf("unexpected terminal outcome: %+v", o)
	}
	if o.LatencySeconds != nil || o.StatusCode != nil {
		t.Errorf("expected null latency/status after transport failures, got %+v", o)
	}
}

func TestZeroRetriesMeansSingleAttempt(t *testing.T) {
	att := newFlaky(100, connRefused)
	res, err := runner.NewCoordinator(att, runner.Options{}).Run(context.Background(), baseConfig(4, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for idx, n := range att.attempts {
		if n != 1 {
			t.Errorf("index %d: expected 1 attempt, got %d", idx, n)
		}
	}
	if res.Summary.Failed != 4 {
		t.Errorf("expected 4 failures, got %+v", res.Summary)
	}
}

func TestNonSuccessStatusIsTerminalByDefault(t *testing.T) {
	att := newFlaky(100, func(int) runner.AttemptResult { return runner.AttemptResult{StatusCode: 503} })
	cfg := baseConfig(1, 1)
	cfg.Retries = 3
	res, err := runner.NewCoordinator(att, runner.Options{}).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.attempts[0] != 1 {
		t.Fatalf("expected a single attempt, got %d", att.attempts[0])
	}
	o := res.Outcomes[0]
	if o.ErrorKind != metrics.ErrorKindNonSuccessStatus || *o.StatusCode != 503 || o.LatencySeconds == nil {
		t.Fatalf("unexpected outcome: %+v", o)
	}
}

func TestRetryNonSuccessUsesLastAttempt(t *testing.T) {
	att := newFlaky(100, func(attempt int) runner.AttemptResult {
		return runner.AttemptResult{StatusCode: 500 + attempt}
	})
	cfg := baseConfig(1, 1)
	cfg.Retries = 2
	opts := runner.Options{Retry: runner.RetryPolicy{RetryNonSuccess: true}}
	res, err := runner.NewCoordinator(att, opts).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.attempts[0] != 3 {
		t.Fatalf("expected 3 attempts, got %d", att.attempts[0])
	}
	if got := *res.Outcomes[0].StatusCode; got != 503 {
		t.Errorf("expected last attempt status 503, got %d", got)
	}
}

func TestShouldRetryOverridesKinds(t *testing.T) {
	att := newFlaky(100, connRefused)
	cfg := baseConfig(1, 1)
	cfg.Retries = 5
	opts := runner.Options{Retry: runner.RetryPolicy{
		ShouldRetry: func(kind metrics.ErrorKind) bool { return false },
	}}
	if _, err := runner.NewCoordinator(att, opts).Run(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.attempts[0] != 1 {
		t.Fatalf("expected 1 attempt, got %d", att.attempts[0])
	}
}

func TestBackoffDelaysRetries(t *testing.T) {
	att := newFlaky(2, connRefused)
	cfg := baseConfig(1, 1)
	cfg.Retries = 2
	opts := runner.Options{Retry: runner.RetryPolicy{Backoff: runner.ConstantBackoff(15 * time.Millisecond)}}
	start := time.Now()
	res, err := runner.NewCoordinator(att, opts).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected two backoff waits, finished in %s", elapsed)
	}
	if !res.Outcomes[0].Success {
		t.Errorf("expected success, got %+v", res.Outcomes[0])
	}
}

func TestFailureLoggerReceivesAttemptErrors(t *testing.T) {
	logger := &testLogger{}
	att := newFlaky(100, connRefused)
	cfg := baseConfig(2, 1)
	cfg.Retries = 1
	if _, err := runner.NewCoordinator(att, runner.Options{Logger: logger}).Run(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logger.errs) != 4 {
		t.Fatalf("expected 4 logged attempts, got %d", len(logger.errs))
	}
	var attemptErr *runner.AttemptError
	if !errors.As(logger.errs[0], &attemptErr) {
		t.Fatalf("expected AttemptError, got %T", logger.errs[0])
	}
	if attemptErr.Kind != metrics.ErrorKindConnection {
		t.Errorf("expected connection kind, got %q", attemptErr.Kind)
	}
}

type testLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *testLogger) LogFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}
