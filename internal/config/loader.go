package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file to
// produce a Config. Flags override file settings. A single positional
// argument is accepted as the target URL.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	switch rest := flagSet.Args(); {
	case len(rest) == 1 && !flagSet.Changed("target"):
		cfg.TargetURL = rest[0]
	case len(rest) > 1 || (len(rest) == 1 && flagSet.Changed("target")):
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	applyAuthEnv(&cfg.Auth)
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = OutputFormatText
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		cfg.Body = val
	}

	if raw, ok := lookupSetting(settings, "bodyfile", "body_file", "body-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("body_file: %w", err)
		}
		cfg.BodyFile = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "total"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		cfg.Total = val
	}

	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "retryonstatus", "retry_on_status", "retry-on-status"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("retry_on_status: %w", err)
		}
		cfg.RetryOnStatus = val
	}

	if raw, ok := lookupSetting(settings, "retrybackoff", "retry_backoff", "retry-backoff"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retry_backoff: %w", err)
		}
		cfg.RetryBackoff = dur
	}

	if raw, ok := lookupSetting(settings, "auth"); ok {
		a, err := parseAuth(raw)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		cfg.Auth = a
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		out, err := parseOutput(raw, cfg.Output)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = out
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tr, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tr
	}

	return nil
}

func parseAuth(value interface{}) (AuthConfig, error) {
	var a AuthConfig
	if value != nil {
		settings, err := toStringKeyMap(value)
		if err != nil {
			return AuthConfig{}, err
		}
		if raw, ok := lookupSetting(settings, "type"); ok {
			val, err := asString(raw)
			if err != nil {
				return AuthConfig{}, fmt.Errorf("type: %w", err)
			}
			a.Type = AuthType(strings.ToLower(strings.TrimSpace(val)))
		}
		if raw, ok := lookupSetting(settings, "username"); ok {
			val, err := asString(raw)
			if err != nil {
				return AuthConfig{}, fmt.Errorf("username: %w", err)
			}
			a.Username = strings.TrimSpace(val)
		}
		if raw, ok := lookupSetting(settings, "password"); ok {
			val, err := asString(raw)
			if err != nil {
				return AuthConfig{}, fmt.Errorf("password: %w", err)
			}
			a.Password = val
		}
		if raw, ok := lookupSetting(settings, "token"); ok {
			val, err := asString(raw)
			if err != nil {
				return AuthConfig{}, fmt.Errorf("token: %w", err)
			}
			a.Token = strings.TrimSpace(val)
		}
	}
	return a, nil
}

// applyAuthEnv fills secrets left empty in files and flags from the environment.
func applyAuthEnv(a *AuthConfig) {
	if a.Password == "" {
		if envPassword := os.Getenv("VOLLEY_AUTH_PASSWORD"); envPassword != "" {
			a.Password = envPassword
		}
	}
	if a.Token == "" {
		if envToken := os.Getenv("VOLLEY_AUTH_TOKEN"); envToken != "" {
			a.Token = envToken
		}
	}
}

func parseOutput(value interface{}, base OutputConfig) (OutputConfig, error) {
	out := base
	if value == nil {
		return out, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return OutputConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("format: %w", err)
		}
		out.Format = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "csv"); ok {
		val, err := asString(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("csv: %w", err)
		}
		out.CSV = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("log_errors: %w", err)
		}
		out.LogErrors = val
	}
	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("progress: %w", err)
		}
		out.Progress = val
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("dashboard: %w", err)
		}
		out.Dashboard = val
	}
	return out, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	tr := base
	if value == nil {
		return tr, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tr.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tr.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tr.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tr.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tr.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tr.Propagate = &val
	}
	return tr, nil
}
