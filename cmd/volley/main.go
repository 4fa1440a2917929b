package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/torosent/volley/internal/config"
	"github.com/torosent/volley/internal/dashboard"
	"github.com/torosent/volley/internal/httpclient"
	"github.com/torosent/volley/internal/metrics"
	"github.com/torosent/volley/internal/output"
	"github.com/torosent/volley/internal/runner"
	"github.com/torosent/volley/internal/threshold"
	"github.com/torosent/volley/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
	exportTimeout    = 10 * time.Second
)

type stderrFailureLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// liveView is a progress display that runs for the duration of a run.
type liveView interface {
	Stop()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rc, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "[volley] tracing shutdown: %v\n", err)
		}
	}()

	client := httpclient.NewClient(rc.Timeout, rc.Concurrency)
	requester := httpclient.NewRequester(client, httpclient.WithTracing(tp))
	collector := metrics.NewCollector(rc.TotalRequests)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	opts := runner.Options{
		Retry:     cfg.RetryPolicy(),
		Preflight: httpclient.ResolveTarget,
		Observer:  collector,
	}
	if cfg.Output.LogErrors {
		opts.Logger = &stderrFailureLogger{w: stderr}
	}

	view, err := startLiveView(cfg, rc, collector, stop, stderr)
	if err != nil {
		return err
	}

	// Reset the collector clock so live RPS starts with the first request.
	collector.Start()
	res, err := runner.NewCoordinator(requester, opts).Run(runCtx, rc)
	if view != nil {
		view.Stop()
	}
	if err != nil {
		return err
	}

	if err := writeReport(stdout, cfg.Output.Format, res); err != nil {
		return err
	}

	if cfg.Output.CSV != "" {
		exportCtx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		if err := output.ExportCSV(exportCtx, cfg.Output.CSV, res.Outcomes); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "[volley] wrote %d rows to %s\n", len(res.Outcomes), cfg.Output.CSV)
	}

	return checkThresholds(stdout, thresholds, res)
}

func startLiveView(cfg *config.Config, rc runner.RunConfig, collector *metrics.Collector, stop func(), stderr io.Writer) (liveView, error) {
	switch {
	case cfg.Output.Dashboard:
		dash, err := dashboard.New(collector, dashboard.RunInfo{
			TargetURL:   rc.TargetURL,
			Method:      string(rc.Method),
			Concurrency: rc.Concurrency,
			Total:       rc.TotalRequests,
			Rate:        rc.RatePerSecond,
			Timeout:     rc.Timeout,
			Retries:     rc.Retries,
			ConfigFile:  cfg.ConfigFile,
		}, stop)
		if err != nil {
			return nil, err
		}
		dash.Start()
		return dash, nil
	case cfg.Output.Progress:
		progress := output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
		return progress, nil
	default:
		return nil, nil
	}
}

func writeReport(w io.Writer, format config.OutputFormat, res *runner.RunResult) error {
	switch format {
	case config.OutputFormatJSON:
		return output.PrintJSONReport(w, res)
	case config.OutputFormatYAML:
		return output.PrintYAMLReport(w, res)
	default:
		output.PrintReport(w, res)
		return nil
	}
}

func checkThresholds(w io.Writer, thresholds []threshold.Threshold, res *runner.RunResult) error {
	if len(thresholds) == 0 {
		return nil
	}
	results := threshold.NewEvaluator(thresholds).Evaluate(threshold.Measurements{
		Summary:  res.Summary,
		Duration: res.Duration,
	})

	fmt.Fprintln(w, "\nThresholds:")
	failed := 0
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
		if !r.Pass {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[volley] request failed: %v\n", err)
}
