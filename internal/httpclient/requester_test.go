package httpclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/volley/internal/httpclient"
	"github.com/torosent/volley/internal/metrics"
	"github.com/torosent/volley/internal/runner"
)

func runConfig(target string, total, concurrency int) runner.RunConfig {
	return runner.RunConfig{
		TargetURL:     target,
		Method:        runner.MethodGet,
		Timeout:       2 * time.Second,
		TotalRequests: total,
		Concurrency:   concurrency,
	}
}

func TestRequesterReportsStatusAndLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Volley") != "yes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	r := httpclient.NewRequester(server.Client())
	res := r.Attempt(context.Background(), runner.RequestSpec{
		Method:  runner.MethodGet,
		URL:     server.URL,
		Headers: map[string]string{"X-Volley": "yes"},
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}
	if res.Latency <= 0 {
		t.Fatalf("expected positive latency, got %s", res.Latency)
	}
}

func TestRequesterSendsBody(t *testing.T) {
	var seen atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		seen.Store(r.Method + " " + r.Header.Get("Content-Type") + " " + buf.String())
	}))
	defer server.Close()

	r := httpclient.NewRequester(server.Client())
	res := r.Attempt(context.Background(), runner.RequestSpec{
		Method:  runner.MethodPut,
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"k":"v"}`),
	})
	if res.Err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, _ := seen.Load().(string)
	if want := `PUT application/json {"k":"v"}`; got != want {
		t.Fatalf("server saw %q, want %q", got, want)
	}
}

func TestRequesterInjectsTraceparent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var traceparent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("Traceparent"))
	}))
	defer server.Close()

	r := httpclient.NewRequester(server.Client(), httpclient.WithTracer(tp.Tracer("test"), true))
	res := r.Attempt(context.Background(), runner.RequestSpec{Index: 3, Method: runner.MethodGet, URL: server.URL})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	got, _ := traceparent.Load().(string)
	if len(got) < 55 {
		t.Fatalf("expected traceparent header, got %q", got)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if !strings.Contains(got, spans[0].SpanContext.TraceID().String()) {
		t.Errorf("traceparent %q does not carry the attempt span's trace id", got)
	}
}

// TestRunAgainstFailingServer mirrors a server that accepts seven requests
// and then starts failing.
func TestRunAgainstFailingServer(t *testing.T) {
	var served int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&served, 1) > 7 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := runConfig(server.URL, 10, 1)
	cfg.Retries = 3
	coord := runner.NewCoordinator(httpclient.NewRequester(server.Client()), runner.Options{})
	res, err := coord.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := res.Summary
	if s.Total != 10 || s.Successful != 7 || s.Failed != 3 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.FailureRatePct != 30.0 {
		t.Fatalf("expected 30%% failures, got %v", s.FailureRatePct)
	}
	if s.StatusCodes[500] != 3 {
		t.Fatalf("expected three 500s, got %v", s.StatusCodes)
	}
	if atomic.LoadInt32(&served) != 10 {
		t.Fatalf("non-200 responses must not be retried by default, server saw %d", served)
	}
	if s.LatencySamples != 10 {
		t.Fatalf("expected latency for every response, got %d", s.LatencySamples)
	}
}

func TestRunTimeoutHasNoLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := runConfig(server.URL, 2, 2)
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retries = 1
	coord := runner.NewCoordinator(httpclient.NewRequester(server.Client()), runner.Options{})
	res, err := coord.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range res.Outcomes {
		if o.ErrorKind != metrics.ErrorKindTimeout {
			t.Errorf("index %d: expected timeout, got %q", o.Index, o.ErrorKind)
		}
		if o.LatencySeconds != nil || o.StatusCode != nil {
			t.Errorf("index %d: expected null latency and status, got %+v", o.Index, o)
		}
		if o.Attempts != 2 {
			t.Errorf("index %d: expected 2 attempts, got %d", o.Index, o.Attempts)
		}
	}
	if res.Summary.LatencySamples != 0 || res.Summary.AverageLatencySeconds != 0 {
		t.Errorf("expected no latency samples, got %+v", res.Summary)
	}
}

func TestRunConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	cfg := runConfig(target, 3, 3)
	coord := runner.NewCoordinator(httpclient.NewRequester(httpclient.NewClient(0, 3)), runner.Options{
		Preflight: httpclient.ResolveTarget,
	})
	res, err := coord.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.ErrorKinds[metrics.ErrorKindConnection] != 3 {
		t.Fatalf("expected 3 connection errors, got %v", res.Summary.ErrorKinds)
	}
}

func TestRunPreflightRejectsUnresolvableHost(t *testing.T) {
	var calls int32
	attempter := runner.AttempterFunc(func(ctx context.Context, spec runner.RequestSpec) runner.AttemptResult {
		atomic.AddInt32(&calls, 1)
		return runner.AttemptResult{StatusCode: 200}
	})
	coord := runner.NewCoordinator(attempter, runner.Options{Preflight: httpclient.ResolveTarget})
	_, err := coord.Run(context.Background(), runConfig("http://volley-preflight.invalid/", 5, 1))

	var pre *runner.PreflightError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreflightError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("no request may be sent after a failed preflight, got %d", calls)
	}
}

func TestRunCancelledMidway(t *testing.T) {
	var once sync.Once
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(cancel)
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := runConfig(server.URL, 20, 2)
	res, err := runner.NewCoordinator(httpclient.NewRequester(server.Client()), runner.Options{}).Run(ctx, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Outcomes) != 20 {
		t.Fatalf("expected a complete result set, got %d", len(res.Outcomes))
	}
	if !res.Cancelled {
		t.Fatal("expected run to be marked cancelled")
	}
	if res.Summary.ErrorKinds[metrics.ErrorKindTimeout] != 0 {
		t.Fatalf("cancellation must not be reported as timeout: %v", res.Summary.ErrorKinds)
	}
}
