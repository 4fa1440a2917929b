package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "volley [flags] [target]",
		Short:         "Send a fixed number of HTTP requests and summarize the results",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Request
	flags.String("target", "", "Target URL to load test")
	flags.StringP("method", "X", DefaultMethod, "HTTP method (GET, POST, PUT, DELETE, PATCH)")
	flags.StringSliceP("header", "H", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")

	// Load control
	flags.IntP("total", "n", DefaultTotal, "Total number of logical requests to send")
	flags.IntP("concurrency", "c", DefaultConcurrency, "Maximum number of in-flight requests")
	flags.IntP("rate", "r", 0, "Requests per second limit (0 means unlimited)")
	flags.Duration("timeout", DefaultTimeout, "Per-attempt timeout")
	flags.Int("retries", DefaultRetries, "Additional attempts after a timeout or connection error")
	flags.Bool("retry-on-status", false, "Also retry responses whose status is not 200")
	flags.Duration("retry-backoff", 0, "Delay between attempts of the same request")

	// Auth
	flags.String("auth-type", "", "Authorization scheme: 'basic' or 'bearer'")
	flags.String("auth-username", "", "Username for basic auth")
	flags.String("auth-password", "", "Password for basic auth (or VOLLEY_AUTH_PASSWORD)")
	flags.String("auth-token", "", "Token for bearer auth (or VOLLEY_AUTH_TOKEN)")

	// Output
	flags.StringP("output", "o", string(OutputFormatText), "Report format: 'text', 'json', or 'yaml'")
	flags.String("csv", "", "Write per-request results to the specified CSV file")
	flags.Bool("log-errors", false, "Log each failed attempt to stderr")
	flags.Bool("no-progress", false, "Disable the live progress line")
	flags.Bool("dashboard", false, "Show a live terminal dashboard")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Thresholds
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'http_req_duration:p99 < 500')")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of attempts to sample (0.0-1.0)")
	flags.Bool("tracing-propagate", true, "Inject W3C traceparent headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
	}
	if fs.Changed("total") {
		val, err := fs.GetInt("total")
		if err != nil {
			return err
		}
		cfg.Total = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("retry-on-status") {
		val, err := fs.GetBool("retry-on-status")
		if err != nil {
			return err
		}
		cfg.RetryOnStatus = val
	}
	if fs.Changed("retry-backoff") {
		val, err := fs.GetDuration("retry-backoff")
		if err != nil {
			return err
		}
		cfg.RetryBackoff = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if err := applyAuthFlags(&cfg.Auth, fs); err != nil {
		return err
	}
	if err := applyOutputFlags(&cfg.Output, fs); err != nil {
		return err
	}

	if fs.Changed("threshold") {
		thresholds, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = thresholds
	}

	return applyTracingFlags(&cfg.Tracing, fs)
}

func applyAuthFlags(a *AuthConfig, fs *pflag.FlagSet) error {
	if fs.Changed("auth-type") {
		val, err := fs.GetString("auth-type")
		if err != nil {
			return err
		}
		a.Type = AuthType(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("auth-username") {
		val, err := fs.GetString("auth-username")
		if err != nil {
			return err
		}
		a.Username = strings.TrimSpace(val)
	}
	if fs.Changed("auth-password") {
		val, err := fs.GetString("auth-password")
		if err != nil {
			return err
		}
		a.Password = val
	}
	if fs.Changed("auth-token") {
		val, err := fs.GetString("auth-token")
		if err != nil {
			return err
		}
		a.Token = strings.TrimSpace(val)
	}
	return nil
}

func applyOutputFlags(o *OutputConfig, fs *pflag.FlagSet) error {
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		o.Format = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("csv") {
		val, err := fs.GetString("csv")
		if err != nil {
			return err
		}
		o.CSV = strings.TrimSpace(val)
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		o.LogErrors = val
	}
	if fs.Changed("no-progress") {
		val, err := fs.GetBool("no-progress")
		if err != nil {
			return err
		}
		o.Progress = !val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		o.Dashboard = val
	}
	return nil
}

func applyTracingFlags(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		t.Propagate = &val
	}
	return nil
}
