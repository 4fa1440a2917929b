package tracing

import (
	"strings"
	"testing"

	"github.com/torosent/volley/internal/config"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		want    string
		wantErr bool
	}{
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
		{rate: -0.1, wantErr: true},
		{rate: 1.01, wantErr: true},
	}
	for _, tt := range tests {
		s, err := newSampler(tt.rate)
		if (err != nil) != tt.wantErr {
			t.Errorf("newSampler(%g) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && s.Description() != tt.want {
			t.Errorf("newSampler(%g) = %s, want %s", tt.rate, s.Description(), tt.want)
		}
	}
}

func TestResolveEndpointPrefersConfig(t *testing.T) {
	t.Setenv(envEndpoint, "http://env-collector:4318")

	if got := resolveEndpoint(config.TracingConfig{Endpoint: " collector:4317 "}); got != "collector:4317" {
		t.Errorf("resolveEndpoint() = %q, want collector:4317", got)
	}
	if got := resolveEndpoint(config.TracingConfig{}); got != "http://env-collector:4318" {
		t.Errorf("resolveEndpoint() = %q, want env endpoint", got)
	}
}

func TestResolveServiceName(t *testing.T) {
	t.Setenv(envServiceName, "")
	if got := resolveServiceName(config.TracingConfig{}); got != defaultServiceName {
		t.Errorf("resolveServiceName() = %q, want %q", got, defaultServiceName)
	}

	t.Setenv(envServiceName, "checkout-load")
	if got := resolveServiceName(config.TracingConfig{}); got != "checkout-load" {
		t.Errorf("resolveServiceName() = %q, want env name", got)
	}
	if got := resolveServiceName(config.TracingConfig{ServiceName: "explicit"}); got != "explicit" {
		t.Errorf("resolveServiceName() = %q, want explicit", got)
	}
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter(t.Context(), config.TracingConfig{Protocol: "zipkin"}, "localhost:4317")
	if err == nil || !strings.Contains(err.Error(), "zipkin") {
		t.Fatalf("newExporter() error = %v, want unsupported protocol", err)
	}
}
