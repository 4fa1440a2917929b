// Package metrics holds the per-request outcome model and turns a finished
// outcome collection into summary statistics.
//
// # Outcomes
//
// An [Outcome] is the terminal record of one logical request: the status code
// and latency of its last attempt (both optional), whether it succeeded and, on
// failure, an [ErrorKind]. A run produces exactly one Outcome per index.
//
// # Aggregation
//
// [Aggregate] is a pure function from a complete outcome collection to a
// [Summary]:
//
//	summary, err := metrics.Aggregate(outcomes)
//	if errors.Is(err, metrics.ErrEmptyResult) {
//		// nothing was recorded
//	}
//
// The average latency only considers outcomes that carry a latency, so
// transport failures and timeouts are excluded rather than counted as zero.
// Percentiles come from an HDR histogram; the equal-width [HistogramBucket]
// series spans the observed [min, max] latency range.
//
// # Live statistics
//
// [Collector] keeps running counters while a run is in flight. It is safe for
// concurrent use and implements the runner's outcome observer so progress
// reporters can poll [Collector.Stats].
package metrics
