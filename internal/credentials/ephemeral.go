package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/eleven-am/dinevoice/internal/metrics"
)

const (
	DefaultAPIBase  = "https://api.openai.com"
	sessionsPath    = "/v1/realtime/sessions"
	requestTimeout  = 15 * time.Second
	maxErrorBodyLen = 512
)

var (
	ErrMissingAPIKey = errors.New("missing api key")
	ErrNoCredential  = errors.New("issuer returned no credential")
)

type EphemeralConfig struct {
	APIBase           string
	APIKey            string
	Model             string
	Voice             string
	RequestsPerSecond float64
	Burst             int
}

// EphemeralIssuer mints a short-lived client secret for each realtime
// session using the server's long-lived API key, so that key never reaches
// the socket.
type EphemeralIssuer struct {
	cfg     EphemeralConfig
	client  *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewEphemeralIssuer(cfg EphemeralConfig, client *http.Client, m *metrics.Metrics, log *slog.Logger) (*EphemeralIssuer, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &EphemeralIssuer{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		metrics: m,
		log:     log.With("component", "ephemeral_issuer"),
	}, nil
}

type sessionRequest struct {
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`
}

type sessionResponse struct {
	ID           string `json:"id"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

func (i *EphemeralIssuer) Token(ctx context.Context) (string, error) {
	token, err := i.mint(ctx)
	i.metrics.TokenRequest("ephemeral", err)
	if err != nil {
		i.log.Error("failed to mint realtime credential", "error", err)
	}
	return token, err
}

func (i *EphemeralIssuer) mint(ctx context.Context) (string, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for issuer rate limit: %w", err)
	}

	body, err := json.Marshal(sessionRequest{Model: i.cfg.Model, Voice: i.cfg.Voice})
	if err != nil {
		return "", fmt.Errorf("encode session request: %w", err)
	}

	url := strings.TrimRight(i.cfg.APIBase, "/") + sessionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+i.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request realtime session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return "", fmt.Errorf("realtime session request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode realtime session: %w", err)
	}
	if out.ClientSecret.Value == "" {
		return "", ErrNoCredential
	}

	i.log.Debug("minted realtime credential", "session_id", out.ID, "expires_at", out.ClientSecret.ExpiresAt)
	return out.ClientSecret.Value, nil
}
