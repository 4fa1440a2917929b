package runner

import (
	"fmt"
	"strings"

	"github.com/torosent/volley/internal/metrics"
)

// ConfigError reports an invalid RunConfig. The run never starts.
type ConfigError struct {
	issues []string
}

// NewConfigError builds a ConfigError from individual issues.
func NewConfigError(issues ...string) *ConfigError {
	return &ConfigError{issues: append([]string(nil), issues...)}
}

func (e *ConfigError) Error() string {
	if len(e.issues) == 0 {
		return "invalid run config"
	}
	return fmt.Sprintf("invalid run config: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual validation failures.
func (e *ConfigError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// PreflightError reports a setup failure detected before any request was
// dispatched, such as an unresolvable target host.
type PreflightError struct {
	Target string
	Err    error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight %s: %v", e.Target, e.Err)
}

func (e *PreflightError) Unwrap() error { return e.Err }

// AttemptError describes one failed physical attempt. It is handed to a
// FailureLogger and never returned from Run.
type AttemptError struct {
	Index      int
	Attempt    int
	Kind       metrics.ErrorKind
	StatusCode int
	Err        error
}

func (e *AttemptError) Error() string {
	prefix := fmt.Sprintf("request %d attempt %d", e.Index, e.Attempt+1)
	if e.Kind == metrics.ErrorKindNonSuccessStatus {
		return fmt.Sprintf("%s: HTTP %d", prefix, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Kind)
}

func (e *AttemptError) Unwrap() error { return e.Err }
