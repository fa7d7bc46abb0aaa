package voicesession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/dinevoice/internal/realtime"
	"github.com/eleven-am/dinevoice/internal/transport"
)

const (
	outboxSize     = 128
	publishTimeout = 2 * time.Second
)

// Publisher delivers session messages to whoever is watching the session.
type Publisher interface {
	Publish(ctx context.Context, msg *transport.SessionMessage) error
}

// VoiceClient is the part of realtime.Client a session drives.
type VoiceClient interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
	State() realtime.State
	Language() string
}

type Status struct {
	SessionID         string         `json:"session_id"`
	UserID            string         `json:"user_id"`
	State             realtime.State `json:"state"`
	Speech            SpeechState    `json:"speech_state"`
	UserSpeaking      bool           `json:"user_speaking"`
	AssistantSpeaking bool           `json:"assistant_speaking"`
	SpeechSince       time.Time      `json:"speech_since"`
	Interruptions     int            `json:"interruptions"`
	Language          string         `json:"language"`
	CreatedAt         time.Time      `json:"created_at"`
}

// VoiceSession is the host side of one realtime client. It receives the
// client's callbacks and relays them to the publisher from its own
// goroutine so the client is never blocked on the network.
type VoiceSession struct {
	id        string
	userID    string
	createdAt time.Time

	client    VoiceClient
	publisher Publisher
	speech    *SpeechTracker
	onClosed  func(*VoiceSession)
	log       *slog.Logger

	outbox    chan *transport.SessionMessage
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newVoiceSession(id, userID string, publisher Publisher, onClosed func(*VoiceSession), log *slog.Logger) *VoiceSession {
	s := &VoiceSession{
		id:        id,
		userID:    userID,
		createdAt: time.Now().UTC(),
		publisher: publisher,
		speech:    NewSpeechTracker(),
		onClosed:  onClosed,
		log:       log.With("session_id", id, "user_id", userID),
		outbox:    make(chan *transport.SessionMessage, outboxSize),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.relay()
	return s
}

func (s *VoiceSession) SessionID() string { return s.id }
func (s *VoiceSession) UserID() string    { return s.userID }

func (s *VoiceSession) Status() Status {
	snap := s.speech.Snapshot()
	st := Status{
		SessionID:         s.id,
		UserID:            s.userID,
		State:             realtime.StateDisconnected,
		Speech:            snap.State,
		UserSpeaking:      snap.UserSpeaking,
		AssistantSpeaking: snap.AssistantSpeaking,
		SpeechSince:       snap.Since,
		Interruptions:     snap.Interruptions,
		Language:          realtime.DefaultLanguage,
		CreatedAt:         s.createdAt,
	}
	if s.client != nil {
		st.State = s.client.State()
		st.Language = s.client.Language()
	}
	return st
}

func (s *VoiceSession) OnMessage(event transport.HostEvent) {
	now := time.Now()
	switch event.Type {
	case transport.MessageTypeInterruption:
		s.speech.OnInterruption(now)
	case transport.MessageTypeUserSpeakingStarted:
		s.speech.OnUserSpeechStart(now)
	case transport.MessageTypeUserSpeakingStopped:
		s.speech.OnUserSpeechEnd(now)
	}
	evt := event
	s.publish(&transport.SessionMessage{Type: event.Type, Event: &evt})
}

func (s *VoiceSession) OnSpeakingChange(speaking bool) {
	s.speech.OnAssistantSpeaking(speaking, time.Now())
	s.publish(&transport.SessionMessage{Type: transport.MessageTypeSpeakingChanged, Active: &speaking})
}

func (s *VoiceSession) OnConnectionChange(connected bool) {
	s.publish(&transport.SessionMessage{Type: transport.MessageTypeConnectionChanged, Active: &connected})
	if !connected && s.onClosed != nil {
		s.onClosed(s)
	}
}

func (s *VoiceSession) OnError(err error) {
	s.log.Warn("realtime service error", "error", err)
	s.publish(&transport.SessionMessage{Type: transport.MessageTypeError, Error: err.Error()})
}

func (s *VoiceSession) publish(msg *transport.SessionMessage) {
	msg.SessionID = s.id
	msg.UserID = s.userID
	msg.Timestamp = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.outbox <- msg:
	default:
		s.log.Warn("session outbox full, dropping message", "type", msg.Type)
	}
}

func (s *VoiceSession) relay() {
	defer s.wg.Done()
	for msg := range s.outbox {
		if s.publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.Error("failed to publish session message", "error", err, "type", msg.Type)
		}
		cancel()
	}
}

// close disconnects the client and flushes pending messages. The client's
// final connection_changed is still published.
func (s *VoiceSession) close() {
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.client.Disconnect()
		}
		s.mu.Lock()
		s.closed = true
		close(s.outbox)
		s.mu.Unlock()
		s.wg.Wait()
		close(s.done)
	})
}

// Done is closed once the session has shut down and flushed its messages.
func (s *VoiceSession) Done() <-chan struct{} {
	return s.done
}
