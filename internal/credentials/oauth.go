package credentials

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/eleven-am/dinevoice/internal/metrics"
)

var ErrMissingClientCredentials = errors.New("missing oauth client credentials")

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// OAuthIssuer fetches an access token with the client-credentials grant,
// for deployments that front the realtime service with their own gateway.
// Tokens are cached until shortly before expiry.
type OAuthIssuer struct {
	source  oauth2.TokenSource
	metrics *metrics.Metrics
}

func NewOAuthIssuer(cfg OAuthConfig, m *metrics.Metrics) (*OAuthIssuer, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
		return nil, ErrMissingClientCredentials
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return &OAuthIssuer{
		source:  oauth2.ReuseTokenSource(nil, cc.TokenSource(context.Background())),
		metrics: m,
	}, nil
}

func (i *OAuthIssuer) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := i.source.Token()
	if err == nil && tok.AccessToken == "" {
		err = ErrNoCredential
	}
	i.metrics.TokenRequest("oauth", err)
	if err != nil {
		return "", fmt.Errorf("client credentials token: %w", err)
	}
	return tok.AccessToken, nil
}

// StaticIssuer hands out a fixed key. Development only.
type StaticIssuer struct {
	Key string
}

func (s StaticIssuer) Token(context.Context) (string, error) {
	if s.Key == "" {
		return "", ErrMissingAPIKey
	}
	return s.Key, nil
}
