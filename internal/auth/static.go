package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StaticTokenProvider returns a pre-configured bearer token.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a new static token provider with the given token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{
		token: token,
	}
}

// Token returns the static token immediately without any network calls.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", errors.New("bearer token is empty")
	}
	return p.token, nil
}

// InjectHeader injects the static token into the Authorization header.
func (p *StaticTokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	return nil
}

// Close is a no-op for static token providers.
func (p *StaticTokenProvider) Close() error {
	return nil
}
