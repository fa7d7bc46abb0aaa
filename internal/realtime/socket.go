package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout    = 10 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024 * 1024
	sendBuffer     = 256
)

var ErrSocketClosed = errors.New("realtime socket closed")

// socket owns one websocket connection to the realtime service. All writes
// go through writePump since gorilla allows a single concurrent writer.
type socket struct {
	ws  *websocket.Conn
	log *slog.Logger

	onMessage func(data []byte)
	onClose   func(err error)

	send chan []byte
	done chan struct{}

	mu        sync.RWMutex
	closed    bool
	cause     error
	closeOnce sync.Once
}

func dialSocket(ctx context.Context, dialer *websocket.Dialer, rawURL, token string, log *slog.Logger) (*socket, error) {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("OpenAI-Beta", BetaHeader)

	ws, resp, err := dialer.DialContext(ctx, rawURL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime service (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime service: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &socket{
		ws:   ws,
		log:  log,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}, nil
}

func (s *socket) start(onMessage func([]byte), onClose func(error)) {
	s.onMessage = onMessage
	s.onClose = onClose
	go s.writePump()
	go s.readPump()
}

func (s *socket) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Send queues v for writing. It never blocks; a full buffer drops v.
func (s *socket) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSocketClosed
	}

	select {
	case s.send <- data:
		return nil
	default:
		s.log.Warn("send buffer full, dropping realtime event")
		return nil
	}
}

func (s *socket) Close() error {
	s.closeWith(nil)
	return nil
}

// closeWith closes the connection once; the first caller's cause is the one
// reported to onClose.
func (s *socket) closeWith(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.cause = cause
		close(s.done)
		s.mu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.ws.Close()
	})
}

func (s *socket) closeCause() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cause
}

func (s *socket) readPump() {
	var cause error
	defer func() {
		s.closeWith(cause)
		if s.onClose != nil {
			s.onClose(s.closeCause())
		}
	}()

	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Error("realtime read error", "error", err)
					cause = err
				}
			}
			return
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))

		if s.onMessage != nil {
			s.onMessage(message)
		}
	}
}

func (s *socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Error("realtime write error", "error", err)
				s.closeWith(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.closeWith(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}
