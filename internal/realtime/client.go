package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/eleven-am/dinevoice/internal/metrics"
	"github.com/eleven-am/dinevoice/internal/transport"
)

var (
	ErrAlreadyConnected = errors.New("realtime client already connected")
	ErrNotConnected     = errors.New("realtime client not connected")
	ErrSetup            = errors.New("realtime session setup failed")
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Deps are the collaborators a Client needs. Tools, Metrics and Dialer are
// optional.
type Deps struct {
	Tokens     transport.TokenSource
	Microphone transport.Microphone
	Player     transport.Player
	Tools      transport.ToolHandler
	Sink       transport.EventSink
	Metrics    *metrics.Metrics
	Dialer     *websocket.Dialer
}

// Client is the realtime voice connection for one user. It can be
// connected again after a disconnect.
type Client struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex
	state   State
	current *session
}

func NewClient(cfg Config, deps Deps, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:   cfg.withDefaults(),
		deps:  deps,
		log:   log.With("component", "realtime_client"),
		state: StateDisconnected,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Language returns the sticky language of the current session, or the
// default language when disconnected.
func (c *Client) Language() string {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return DefaultLanguage
	}
	return s.language()
}

// Connect obtains a credential, opens the microphone and the socket, sends
// the session configuration and starts streaming. On any failure every
// resource created so far is released and an error wrapping ErrSetup is
// returned.
func (c *Client) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	s := newSession(c, userID)
	c.current = s
	c.mu.Unlock()

	if err := s.open(ctx); err != nil {
		s.teardown()
		c.deps.Metrics.SessionFailed()
		c.log.Error("realtime connect failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.state = StateConnected
	c.mu.Unlock()

	s.markConnected()
	return nil
}

// Disconnect tears down the current session. It is a no-op when nothing is
// connected and is safe to call concurrently with the socket's own close.
func (c *Client) Disconnect() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		s.teardown()
	}
}

func (c *Client) released(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
		c.state = StateDisconnected
	}
}
