package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/volley/internal/runner"
)

// BuildRequest turns spec into an *http.Request bound to ctx. The body can be
// replayed through GetBody.
func BuildRequest(ctx context.Context, spec runner.RequestSpec) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(string(spec.Method)))
	if method == "" {
		method = http.MethodGet
	}

	headers, err := canonicalHeaders(spec.Headers)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header = headers

	if len(spec.Body) > 0 {
		payload := spec.Body
		req.ContentLength = int64(len(payload))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}

	return req, nil
}

func canonicalHeaders(in map[string]string) (http.Header, error) {
	headers := make(http.Header, len(in)+1)
	for key, value := range in {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if canonicalKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}

		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}

		headers.Set(canonicalKey, value)
	}
	return headers, nil
}

// NewClient returns a client whose idle pool keeps at least one connection
// per concurrent worker.
func NewClient(timeout time.Duration, concurrency int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	idlePerHost := 32
	if concurrency > idlePerHost {
		idlePerHost = concurrency
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   idlePerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ResolveTarget checks that the target host resolves. IP literals are
// accepted without a lookup. It has the signature of runner.Options.Preflight.
func ResolveTarget(ctx context.Context, cfg runner.RunConfig) error {
	return resolveWith(ctx, net.DefaultResolver, cfg.TargetURL)
}

func resolveWith(ctx context.Context, resolver *net.Resolver, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	host := req.URL.Hostname()
	if host == "" {
		return errors.New("target has no host")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	return nil
}
