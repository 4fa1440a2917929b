package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
)

// BasicProvider implements HTTP Basic authentication.
type BasicProvider struct {
	username string
	password string
}

// NewBasicProvider creates a provider for the given credentials.
func NewBasicProvider(username, password string) (*BasicProvider, error) {
	if username == "" {
		return nil, errors.New("basic auth requires a username")
	}
	return &BasicProvider{username: username, password: password}, nil
}

// Token returns the base64 encoded "username:password" pair.
func (p *BasicProvider) Token(ctx context.Context) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.password)), nil
}

// InjectHeader sets a Basic Authorization header.
func (p *BasicProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Basic "+token)
	return nil
}

func (p *BasicProvider) Close() error {
	return nil
}
