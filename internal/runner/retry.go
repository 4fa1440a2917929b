package runner

import (
	"context"
	"time"

	"github.com/torosent/volley/internal/metrics"
)

// RetryPolicy decides which failed attempts are retried. By default only
// timeouts and connection errors are retried; a non-200 response is a
// terminal outcome unless RetryNonSuccess is set.
type RetryPolicy struct {
	MaxRetries      int                               // additional attempts; set from RunConfig.Retries
	RetryNonSuccess bool                              // also retry non-success status codes
	ShouldRetry     func(kind metrics.ErrorKind) bool // overrides the kind rules when set
	Backoff         func(retry int) time.Duration     // delay before retry n (1-based); nil means immediate
}

func (p RetryPolicy) retryable(kind metrics.ErrorKind) bool {
	if kind == metrics.ErrorKindNone || kind == metrics.ErrorKindCancelled {
		return false
	}
	if p.ShouldRetry != nil {
		return p.ShouldRetry(kind)
	}
	switch kind {
	case metrics.ErrorKindTimeout, metrics.ErrorKindConnection:
		return true
	case metrics.ErrorKindNonSuccessStatus:
		return p.RetryNonSuccess
	default:
		return false
	}
}

// wait sleeps for the backoff of the given retry. It returns false if ctx
// ends first.
func (p RetryPolicy) wait(ctx context.Context, retry int) bool {
	if p.Backoff == nil {
		return ctx.Err() == nil
	}
	delay := p.Backoff(retry)
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ConstantBackoff returns a Backoff that always waits d.
func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// FailureLogger logs failed attempts.
type FailureLogger interface {
	LogFailure(err error)
}
