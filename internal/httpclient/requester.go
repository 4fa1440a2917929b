package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/volley/internal/runner"
	"github.com/torosent/volley/internal/tracing"
)

const maxBodyReadSize = 1024 * 1024

// Requester performs single HTTP attempts. It implements runner.Attempter.
type Requester struct {
	client    *http.Client
	tracer    trace.Tracer
	propagate bool
}

// Option configures a Requester.
type Option func(*Requester)

// WithTracing records one span per attempt using the provider's tracer and
// injects trace headers when the provider propagates.
func WithTracing(p *tracing.Provider) Option {
	return func(r *Requester) {
		r.tracer = p.Tracer()
		r.propagate = p.ShouldPropagate()
	}
}

// WithTracer is WithTracing for an explicit tracer.
func WithTracer(t trace.Tracer, propagate bool) Option {
	return func(r *Requester) {
		r.tracer = t
		r.propagate = propagate
	}
}

func NewRequester(client *http.Client, opts ...Option) *Requester {
	if client == nil {
		client = http.DefaultClient
	}
	r := &Requester{
		client: client,
		tracer: noop.NewTracerProvider().Tracer("volley"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempt sends one request and reads the response body. Latency covers the
// full exchange including the body. Any response, whatever its status, is a
// nil-error result; only transport failures set Err.
func (r *Requester) Attempt(ctx context.Context, spec runner.RequestSpec) runner.AttemptResult {
	ctx, span := tracing.StartAttemptSpan(ctx, r.tracer, string(spec.Method), spec.URL, spec.Index, spec.Attempt)

	req, err := BuildRequest(ctx, spec)
	if err != nil {
		tracing.EndSpan(span, err)
		return runner.AttemptResult{Err: err}
	}
	if r.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		tracing.EndSpan(span, err)
		return runner.AttemptResult{Err: err}
	}
	_, err = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyReadSize))
	resp.Body.Close()
	latency := time.Since(start)
	if err != nil {
		tracing.EndSpan(span, err, tracing.StatusCode(resp.StatusCode))
		return runner.AttemptResult{Err: fmt.Errorf("read body: %w", err)}
	}

	var statusErr error
	if resp.StatusCode >= 400 {
		statusErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	tracing.EndSpan(span, statusErr, tracing.StatusCode(resp.StatusCode))

	return runner.AttemptResult{StatusCode: resp.StatusCode, Latency: latency}
}
