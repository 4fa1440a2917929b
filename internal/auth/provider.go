package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Provider defines the interface for authentication providers that can
// obtain credentials and inject them into HTTP requests.
type Provider interface {
	// Token returns the credential placed after the scheme in the
	// Authorization header.
	Token(ctx context.Context) (string, error)

	// InjectHeader sets the Authorization header of the provided request.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// Apply returns a copy of headers with the provider's Authorization header
// set. A nil provider returns headers unchanged.
func Apply(ctx context.Context, provider Provider, headers map[string]string) (map[string]string, error) {
	if provider == nil {
		return headers, nil
	}
	req := &http.Request{Header: make(http.Header)}
	if err := provider.InjectHeader(ctx, req); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			continue
		}
		out[k] = v
	}
	if value := req.Header.Get("Authorization"); value != "" {
		out["Authorization"] = value
	}
	return out, nil
}
