package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eleven-am/dinevoice/internal/transport"
)

const sseKeepAliveInterval = 30 * time.Second

// SSEConn writes session messages to one HTTP client as server-sent events.
type SSEConn struct {
	writer    http.ResponseWriter
	flusher   http.Flusher
	keepAlive time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewSSEConn(w http.ResponseWriter) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, http.ErrNotSupported
	}
	return &SSEConn{
		writer:    w,
		flusher:   flusher,
		keepAlive: sseKeepAliveInterval,
		done:      make(chan struct{}),
	}, nil
}

func (c *SSEConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Run forwards events until the channel closes, ctx ends, Close is called
// or a write fails.
func (c *SSEConn) Run(ctx context.Context, events <-chan *transport.SessionMessage) error {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()
	defer func() { _ = c.Close() }()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.writeMessage(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.writeKeepAlive(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

func (c *SSEConn) writeMessage(msg *transport.SessionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.writer, "event: %s\ndata: %s\n\n", msg.Type, data); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *SSEConn) writeKeepAlive() error {
	if _, err := c.writer.Write([]byte(":keepalive\n\n")); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}
