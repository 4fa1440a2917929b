package runner

import "time"

// RequestSpec describes one attempt of a logical request. Specs share their
// header map and body and must be treated as read-only.
type RequestSpec struct {
	Index   int
	Attempt int // 0 for the first attempt
	Method  Method
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

func (s RequestSpec) nextAttempt() RequestSpec {
	s.Attempt++
	return s
}

// BuildRequestSpecs derives the specs for indices 0..TotalRequests-1. They are
// identical except for Index.
func BuildRequestSpecs(cfg RunConfig) []RequestSpec {
	if cfg.TotalRequests <= 0 {
		return nil
	}
	specs := make([]RequestSpec, cfg.TotalRequests)
	for i := range specs {
		specs[i] = RequestSpec{
			Index:   i,
			Method:  cfg.Method,
			URL:     cfg.TargetURL,
			Headers: cfg.Headers,
			Body:    cfg.Body,
			Timeout: cfg.Timeout,
		}
	}
	return specs
}
