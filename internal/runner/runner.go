package runner

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/volley/internal/metrics"
)

// Dispatcher executes request specs on a fixed pool of workers and records
// exactly one terminal outcome per spec.
type Dispatcher struct {
	attempter   Attempter
	concurrency int
	limiter     *rate.Limiter
	opt         Options
}

// NewDispatcher creates a dispatcher running at most concurrency attempts at
// once. rps paces dispatch when positive.
func NewDispatcher(attempter Attempter, concurrency, rps int, opt Options) *Dispatcher {
	opt.normalize()
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		attempter:   attempter,
		concurrency: concurrency,
		limiter:     opt.LimiterFactory(rps),
		opt:         opt,
	}
}

// Dispatch runs every spec and returns outcomes addressed by position: the
// outcome for specs[i] is at index i. When ctx is cancelled, specs that never
// reached a terminal attempt are recorded as cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, specs []RequestSpec) []metrics.Outcome {
	n := len(specs)
	outcomes := make([]metrics.Outcome, n)
	if n == 0 {
		return outcomes
	}
	// Each slot is written once, by the worker that owns the index.
	written := make([]bool, n)

	workers := d.concurrency
	if workers > n {
		workers = n
	}

	queue := make(chan int, workers)

	// Scheduler: hands out indices in order and serializes pacing.
	go func() {
		defer close(queue)
		for i := range specs {
			if ctx.Err() != nil {
				return
			}
			if d.limiter != nil {
				if err := d.limiter.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range queue {
				outcomes[i] = d.execute(ctx, specs[i])
				written[i] = true
				d.notify(outcomes[i])
			}
		}()
	}
	wg.Wait()

	for i := range outcomes {
		if !written[i] {
			outcomes[i] = metrics.CancelledOutcome(specs[i].Index, 0)
			d.notify(outcomes[i])
		}
	}
	return outcomes
}

// execute drives one logical request through its attempts. The calling
// worker holds its concurrency slot for the whole loop.
func (d *Dispatcher) execute(ctx context.Context, spec RequestSpec) metrics.Outcome {
	for {
		if ctx.Err() != nil {
			return metrics.CancelledOutcome(spec.Index, spec.Attempt)
		}

		out := d.attempt(ctx, spec)
		if out.Success || out.ErrorKind == metrics.ErrorKindCancelled {
			return out
		}
		if spec.Attempt >= d.opt.Retry.MaxRetries || !d.opt.Retry.retryable(out.ErrorKind) {
			return out
		}
		if !d.opt.Retry.wait(ctx, spec.Attempt+1) {
			return metrics.CancelledOutcome(spec.Index, spec.Attempt+1)
		}
		spec = spec.nextAttempt()
	}
}

func (d *Dispatcher) attempt(ctx context.Context, spec RequestSpec) metrics.Outcome {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	start := time.Now()
	res := d.attempter.Attempt(attemptCtx, spec)
	elapsed := time.Since(start)

	out := metrics.Outcome{Index: spec.Index, Attempts: spec.Attempt + 1}
	if res.Err != nil {
		out.ErrorKind = classify(ctx, attemptCtx, res.Err)
		d.logFailure(spec, out.ErrorKind, 0, res.Err)
		return out
	}

	latency := res.Latency
	if latency <= 0 {
		latency = elapsed
	}
	out.StatusCode = metrics.IntPtr(res.StatusCode)
	out.LatencySeconds = metrics.Float64Ptr(latency.Seconds())
	out.Success = d.opt.Accept(res.StatusCode)
	if !out.Success {
		out.ErrorKind = metrics.ErrorKindNonSuccessStatus
		d.logFailure(spec, out.ErrorKind, res.StatusCode, nil)
	}
	return out
}

// classify maps a transport error to an error kind. The run context wins over
// the attempt deadline so an external cancel is never reported as a timeout.
func classify(runCtx, attemptCtx context.Context, err error) metrics.ErrorKind {
	if runCtx.Err() != nil {
		return metrics.ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return metrics.ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return metrics.ErrorKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return metrics.ErrorKindCancelled
	}
	return metrics.ErrorKindConnection
}

func (d *Dispatcher) logFailure(spec RequestSpec, kind metrics.ErrorKind, status int, err error) {
	if d.opt.Logger == nil {
		return
	}
	d.opt.Logger.LogFailure(&AttemptError{
		Index:      spec.Index,
		Attempt:    spec.Attempt,
		Kind:       kind,
		StatusCode: status,
		Err:        err,
	})
}

func (d *Dispatcher) notify(o metrics.Outcome) {
	if d.opt.Observer != nil {
		d.opt.Observer.OnOutcome(o)
	}
}
