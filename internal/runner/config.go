package runner

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Method is an HTTP method supported by the engine.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// ParseMethod normalizes s into a supported Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return m, nil
	case "":
		return MethodGet, nil
	default:
		return "", fmt.Errorf("unsupported method %q", s)
	}
}

// RequiresBody reports whether requests with this method must carry a body.
func (m Method) RequiresBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodPatch
}

// RunConfig describes one run. It is treated as immutable once a run starts.
type RunConfig struct {
	TargetURL     string
	Method        Method
	Headers       map[string]string
	Body          []byte
	Timeout       time.Duration // per attempt
	Retries       int           // additional attempts per logical request
	TotalRequests int
	Concurrency   int
	RatePerSecond int // 0 means unpaced
}

// Validate checks the config and returns a *ConfigError listing every issue.
func (c RunConfig) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required")
	} else if u, err := url.Parse(target); err != nil {
		issues = append(issues, fmt.Sprintf("target %q is not a valid URL: %v", target, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("target scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		issues = append(issues, "target host is required")
	}

	method, err := ParseMethod(string(c.Method))
	if err != nil {
		issues = append(issues, err.Error())
	}

	if c.TotalRequests < 1 {
		issues = append(issues, "total requests must be >= 1")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.RatePerSecond < 0 {
		issues = append(issues, "rate must be >= 0")
	}

	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\r\n") {
			issues = append(issues, fmt.Sprintf("invalid header key %q", key))
		}
		if strings.ContainsAny(value, "\r\n") {
			issues = append(issues, fmt.Sprintf("invalid header value for %s", key))
		}
	}

	if err == nil {
		issues = append(issues, validateBody(method, c.Body, c.Headers)...)
	}

	if len(issues) > 0 {
		return &ConfigError{issues: issues}
	}
	return nil
}

func validateBody(method Method, body []byte, headers map[string]string) []string {
	hasBody := len(strings.TrimSpace(string(body))) > 0
	switch {
	case method.RequiresBody() && !hasBody:
		return []string{fmt.Sprintf("%s requires a request body", method)}
	case !method.RequiresBody() && hasBody:
		return []string{fmt.Sprintf("%s does not accept a request body", method)}
	case hasBody && declaresJSON(headers) && !gjson.ValidBytes(body):
		return []string{"body is not valid JSON but the content type declares JSON"}
	}
	return nil
}

func declaresJSON(headers map[string]string) bool {
	for key, value := range headers {
		if strings.EqualFold(strings.TrimSpace(key), "Content-Type") {
			return strings.Contains(strings.ToLower(value), "json")
		}
	}
	return false
}

// normalized returns a copy with the method upper-cased, concurrency clamped
// to the request count and its own header map.
func (c RunConfig) normalized() RunConfig {
	out := c
	out.TargetURL = strings.TrimSpace(c.TargetURL)
	out.Method, _ = ParseMethod(string(c.Method))
	if out.Concurrency > out.TotalRequests {
		out.Concurrency = out.TotalRequests
	}
	out.Headers = make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		out.Headers[k] = v
	}
	if c.Body != nil {
		out.Body = append([]byte(nil), c.Body...)
	}
	return out
}
