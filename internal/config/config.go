package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/torosent/volley/internal/auth"
	"github.com/torosent/volley/internal/runner"
	"github.com/torosent/volley/internal/threshold"
)

const (
	DefaultMethod      = "GET"
	DefaultTimeout     = 5 * time.Second
	DefaultRetries     = 3
	DefaultTotal       = 100
	DefaultConcurrency = 10
)

type Config struct {
	TargetURL     string            `mapstructure:"target"`
	Method        string            `mapstructure:"method"`
	Headers       map[string]string `mapstructure:"headers"`
	Body          string            `mapstructure:"body"`
	BodyFile      string            `mapstructure:"body_file"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	Retries       int               `mapstructure:"retries"`
	Total         int               `mapstructure:"total"`
	Concurrency   int               `mapstructure:"concurrency"`
	Rate          int               `mapstructure:"rate"`
	RetryOnStatus bool              `mapstructure:"retry_on_status"`
	RetryBackoff  time.Duration     `mapstructure:"retry_backoff"`
	Auth          AuthConfig        `mapstructure:"auth"`
	Output        OutputConfig      `mapstructure:"output"`
	Thresholds    []string          `mapstructure:"thresholds"`
	Tracing       TracingConfig     `mapstructure:"tracing"`
	ConfigFile    string            `mapstructure:"-"`
}

type AuthType string

const (
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
)

type AuthConfig struct {
	Type     AuthType `mapstructure:"type"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Token    string   `mapstructure:"token"`
}

type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

type OutputConfig struct {
	Format    OutputFormat `mapstructure:"format"`
	CSV       string       `mapstructure:"csv"`        // per-request rows export path
	LogErrors bool         `mapstructure:"log_errors"` // log each failed attempt to stderr
	Progress  bool         `mapstructure:"progress"`
	Dashboard bool         `mapstructure:"dashboard"` // live terminal dashboard instead of the progress line
}

// TracingConfig configures OpenTelemetry export. Tracing is enabled when an
// endpoint is set here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate defaults to Enabled when Propagate is unset.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Method:      DefaultMethod,
		Headers:     map[string]string{},
		Timeout:     DefaultTimeout,
		Retries:     DefaultRetries,
		Total:       DefaultTotal,
		Concurrency: DefaultConcurrency,
		Output:      OutputConfig{Format: OutputFormatText, Progress: true},
		Tracing:     TracingConfig{SampleRate: 1.0},
	}
}

// Validate returns a *runner.ConfigError listing every problem with c,
// including those reported by the derived runner.RunConfig.
func (c Config) Validate() error {
	var issues []string

	if c.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.\n", c.Rate)
	}
	if c.Concurrency > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.\n", c.Concurrency)
	}

	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and body_file are mutually exclusive")
	}
	if c.RetryBackoff < 0 {
		issues = append(issues, "retry_backoff must be >= 0")
	}
	issues = append(issues, validateAuthConfig(c.Auth)...)
	issues = append(issues, validateOutputConfig(c.Output)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)
	for i, raw := range c.Thresholds {
		if _, err := threshold.Parse(raw); err != nil {
			issues = append(issues, fmt.Sprintf("thresholds[%d]: %v", i, err))
		}
	}

	if len(issues) == 0 {
		rc, err := c.RunConfig()
		if err != nil {
			issues = append(issues, err.Error())
		} else if err := rc.Validate(); err != nil {
			var cfgErr *runner.ConfigError
			if !errors.As(err, &cfgErr) {
				return err
			}
			issues = append(issues, cfgErr.Issues()...)
		}
	}

	if len(issues) > 0 {
		return runner.NewConfigError(issues...)
	}
	return nil
}

func validateAuthConfig(a AuthConfig) []string {
	switch a.Type {
	case "":
		return nil
	case AuthTypeBasic:
		if strings.TrimSpace(a.Username) == "" {
			return []string{"auth: username is required for basic"}
		}
	case AuthTypeBearer:
		if strings.TrimSpace(a.Token) == "" {
			return []string{"auth: token is required for bearer"}
		}
	default:
		return []string{fmt.Sprintf("auth: unsupported type %q", a.Type)}
	}
	return nil
}

func validateOutputConfig(o OutputConfig) []string {
	switch o.Format {
	case "", OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return []string{fmt.Sprintf("output: format must be 'text', 'json', or 'yaml', got %q", o.Format)}
	}
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1.0 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

// AuthProvider builds the provider described by the auth section, or nil
// when no auth is configured.
func (c Config) AuthProvider() (auth.Provider, error) {
	switch c.Auth.Type {
	case "":
		return nil, nil
	case AuthTypeBasic:
		return auth.NewBasicProvider(c.Auth.Username, c.Auth.Password)
	case AuthTypeBearer:
		return auth.NewStaticTokenProvider(c.Auth.Token), nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", c.Auth.Type)
	}
}

// RunConfig resolves the body file and auth header and returns the
// immutable configuration handed to the runner. A JSON Content-Type is
// assumed when a body is present and no Content-Type header is set.
func (c Config) RunConfig() (runner.RunConfig, error) {
	body := []byte(c.Body)
	if path := strings.TrimSpace(c.BodyFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return runner.RunConfig{}, fmt.Errorf("body_file: %w", err)
		}
		body = data
	}
	if len(body) == 0 {
		body = nil
	}

	headers := make(map[string]string, len(c.Headers)+2)
	for k, v := range c.Headers {
		headers[http.CanonicalHeaderKey(strings.TrimSpace(k))] = v
	}
	if body != nil {
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	provider, err := c.AuthProvider()
	if err != nil {
		return runner.RunConfig{}, err
	}
	if provider != nil {
		defer provider.Close()
		headers, err = auth.Apply(context.Background(), provider, headers)
		if err != nil {
			return runner.RunConfig{}, err
		}
	}

	return runner.RunConfig{
		TargetURL:     strings.TrimSpace(c.TargetURL),
		Method:        runner.Method(strings.ToUpper(strings.TrimSpace(c.Method))),
		Headers:       headers,
		Body:          body,
		Timeout:       c.Timeout,
		Retries:       c.Retries,
		TotalRequests: c.Total,
		Concurrency:   c.Concurrency,
		RatePerSecond: c.Rate,
	}, nil
}

// RetryPolicy returns the retry behavior selected by retry_on_status and
// retry_backoff. MaxRetries is filled in by the runner from RunConfig.
func (c Config) RetryPolicy() runner.RetryPolicy {
	policy := runner.RetryPolicy{RetryNonSuccess: c.RetryOnStatus}
	if c.RetryBackoff > 0 {
		policy.Backoff = runner.ConstantBackoff(c.RetryBackoff)
	}
	return policy
}
