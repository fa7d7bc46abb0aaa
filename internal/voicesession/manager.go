package voicesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/dinevoice/internal/realtime"
	"github.com/eleven-am/dinevoice/internal/shared"
	"github.com/eleven-am/dinevoice/internal/transport"
)

var (
	ErrSessionLimit = errors.New("voice session limit reached")
	ErrMissingUser  = errors.New("user id is required")
)

// DefaultMaxSessions is one because a host usually owns a single
// microphone and speaker.
const DefaultMaxSessions = 1

// ClientFactory builds the realtime client for a session, wired to sink.
type ClientFactory func(sink transport.EventSink) VoiceClient

type Manager struct {
	publisher   Publisher
	newClient   ClientFactory
	maxSessions int
	sessions    map[string]*VoiceSession
	mu          sync.RWMutex
	log         *slog.Logger
}

type ManagerConfig struct {
	Publisher   Publisher
	Realtime    realtime.Config
	Deps        realtime.Deps
	NewClient   ClientFactory
	MaxSessions int
	Log         *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}

	log := cfg.Log.With("component", "voicesession_manager")
	factory := cfg.NewClient
	if factory == nil {
		rtCfg, deps := cfg.Realtime, cfg.Deps
		factory = func(sink transport.EventSink) VoiceClient {
			d := deps
			d.Sink = sink
			return realtime.NewClient(rtCfg, d, cfg.Log)
		}
	}

	return &Manager{
		publisher:   cfg.Publisher,
		newClient:   factory,
		maxSessions: cfg.MaxSessions,
		sessions:    make(map[string]*VoiceSession),
		log:         log,
	}
}

// Start creates a session for userID and connects its realtime client.
// The session is registered before connecting so its events can be
// subscribed to by id as soon as Start returns.
func (m *Manager) Start(ctx context.Context, userID string) (Status, error) {
	if userID == "" {
		return Status{}, ErrMissingUser
	}

	id := uuid.NewString()
	session := newVoiceSession(id, userID, m.publisher, m.sessionClosed, m.log)
	session.client = m.newClient(session)

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		session.close()
		return Status{}, fmt.Errorf("%w (%d)", ErrSessionLimit, m.maxSessions)
	}
	m.sessions[id] = session
	m.mu.Unlock()

	if err := session.client.Connect(ctx, userID); err != nil {
		m.remove(id)
		session.close()
		return Status{}, err
	}

	m.log.Info("voice session started", "session_id", id, "user_id", userID)
	return session.Status(), nil
}

func (m *Manager) Stop(sessionID string) error {
	session, ok := m.remove(sessionID)
	if !ok {
		return shared.ErrNotFound
	}
	session.close()
	m.log.Info("voice session stopped", "session_id", sessionID)
	return nil
}

func (m *Manager) Status(sessionID string) (Status, error) {
	session, ok := m.GetSession(sessionID)
	if !ok {
		return Status{}, shared.ErrNotFound
	}
	return session.Status(), nil
}

func (m *Manager) GetSession(sessionID string) (*VoiceSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session, ok
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) ListSessions() []Status {
	m.mu.RLock()
	sessions := make([]*VoiceSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	return out
}

func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*VoiceSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*VoiceSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	return nil
}

// sessionClosed runs on the client's teardown path when the realtime
// connection ends, so the actual close happens on another goroutine.
func (m *Manager) sessionClosed(s *VoiceSession) {
	m.mu.Lock()
	if current, ok := m.sessions[s.id]; ok && current == s {
		delete(m.sessions, s.id)
		m.log.Info("voice session ended by transport", "session_id", s.id)
	}
	m.mu.Unlock()
	go s.close()
}

func (m *Manager) remove(sessionID string) (*VoiceSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	return session, ok
}
