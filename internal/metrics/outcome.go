package metrics

import (
	"math"
	"time"
)

// ErrorKind classifies why a logical request failed.
type ErrorKind string

const (
	ErrorKindNone             ErrorKind = ""
	ErrorKindTimeout          ErrorKind = "timeout"
	ErrorKindConnection       ErrorKind = "connection_error"
	ErrorKindNonSuccessStatus ErrorKind = "non_success_status"
	ErrorKindCancelled        ErrorKind = "cancelled"
)

// Outcome is the terminal result of one logical request. StatusCode and
// LatencySeconds are nil when the last attempt produced no response.
type Outcome struct {
	Index          int       `json:"index" yaml:"index"`
	StatusCode     *int      `json:"status_code" yaml:"status_code"`
	LatencySeconds *float64  `json:"latency" yaml:"latency"`
	Success        bool      `json:"success" yaml:"success"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Attempts       int       `json:"attempts" yaml:"attempts"`
}

// Latency returns the recorded latency as a duration.
func (o Outcome) Latency() (time.Duration, bool) {
	if o.LatencySeconds == nil {
		return 0, false
	}
	return time.Duration(math.Round(*o.LatencySeconds * float64(time.Second))), true
}

// CancelledOutcome is recorded for an index that never reached a terminal
// attempt before the run was cancelled.
func CancelledOutcome(index, attempts int) Outcome {
	return Outcome{Index: index, ErrorKind: ErrorKindCancelled, Attempts: attempts}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
