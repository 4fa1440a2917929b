// Package runner provides the load generation engine for volley.
//
// A run issues a fixed number of logical requests against one target using a
// bounded pool of workers. Every logical request ends with exactly one
// terminal [metrics.Outcome], whatever happens on the wire:
//   - Fixed worker pool sized by [RunConfig.Concurrency]
//   - Per-attempt timeout enforced through the attempt context
//   - Immediate retries for timeouts and connection errors (see [RetryPolicy])
//   - Optional fixed pacing (requests per second)
//   - External cancellation that still yields a complete result set
//
// # Basic Usage
//
// Build a coordinator around an [Attempter] and run a validated config:
//
//	coord := runner.NewCoordinator(attempter, runner.Options{})
//	result, err := coord.Run(ctx, runner.RunConfig{
//		TargetURL:     "http://localhost:8080/health",
//		Method:        runner.MethodGet,
//		Timeout:       5 * time.Second,
//		Retries:       3,
//		TotalRequests: 100,
//		Concurrency:   10,
//	})
//
// # Attempter Interface
//
// The [Attempter] performs one physical call for a [RequestSpec]:
//
//	type Attempter interface {
//		Attempt(ctx context.Context, spec RequestSpec) AttemptResult
//	}
//
// Implementations must return promptly once ctx is done. The dispatcher turns
// each [AttemptResult] into an outcome and decides whether to retry.
//
// # Error Handling
//
// Individual request failures never surface as errors. Run only fails before
// dispatching anything: with [*ConfigError] for an invalid config or
// [*PreflightError] when the target cannot be prepared.
//
//	var cfgErr *runner.ConfigError
//	if errors.As(err, &cfgErr) {
//		for _, issue := range cfgErr.Issues() {
//			fmt.Println(issue)
//		}
//	}
package runner
