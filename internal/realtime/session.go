package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/dinevoice/internal/audio"
	"github.com/eleven-am/dinevoice/internal/playback"
	"github.com/eleven-am/dinevoice/internal/transport"
	"github.com/eleven-am/dinevoice/internal/vad"
)

var (
	errNoTokenSource = errors.New("no token source configured")
	errNoMicrophone  = errors.New("no microphone configured")
	errNoPlayer      = errors.New("no audio player configured")
	errEmptyToken    = errors.New("token source returned an empty credential")
)

// session holds everything one connection creates. Each handle is released
// exactly once by teardown, whichever of Disconnect or the socket's close
// path gets there first.
type session struct {
	client *Client
	cfg    Config
	deps   Deps
	log    *slog.Logger
	userID string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	connected bool
	started   time.Time
	stream    transport.CaptureStream
	analyser  *audio.Analyser
	detector  *vad.Detector
	queue     *playback.Queue
	sock      *socket
	lang      string

	// turnMu orders the audio-delta enqueue against the barge-in interrupt.
	turnMu            sync.Mutex
	userSpeaking      bool
	assistantSpeaking atomic.Bool

	transcriptMu sync.Mutex
	transcript   strings.Builder

	teardownOnce sync.Once
}

func newSession(c *Client, userID string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		client: c,
		cfg:    c.cfg,
		deps:   c.deps,
		log:    c.log.With("user_id", userID, "session_ref", uuid.NewString()),
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
		lang:   DefaultLanguage,
	}
}

func (s *session) open(ctx context.Context) error {
	switch {
	case s.deps.Tokens == nil:
		return errNoTokenSource
	case s.deps.Microphone == nil:
		return errNoMicrophone
	case s.deps.Player == nil:
		return errNoPlayer
	}

	token, err := s.deps.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	if token == "" {
		return errEmptyToken
	}

	stream, err := s.deps.Microphone.Open(s.ctx, s.cfg.Capture)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	if !s.hold(func() { s.stream = stream }) {
		_ = stream.Stop()
		return ErrNotConnected
	}

	analyser := audio.NewAnalyser(s.cfg.Analyser)
	detector := vad.New(analyser, s.cfg.VAD, s.onActivity, s.log)
	queue := playback.NewQueue(s.deps.Player, s.log)
	queue.OnPlayingChange(s.onPlayingChange)
	queue.OnDecodeFailure(s.deps.Metrics.DecodeFailed)
	if !s.hold(func() {
		s.analyser = analyser
		s.detector = detector
		s.queue = queue
	}) {
		detector.Stop()
		queue.Close()
		return ErrNotConnected
	}

	dialURL, err := s.cfg.dialURL()
	if err != nil {
		return err
	}
	sock, err := dialSocket(ctx, s.deps.Dialer, dialURL, token, s.log)
	if err != nil {
		return err
	}
	if !s.hold(func() { s.sock = sock }) {
		_ = sock.Close()
		return ErrNotConnected
	}

	var tools []transport.ToolDefinition
	if s.deps.Tools != nil {
		tools = s.deps.Tools.Definitions()
	}
	update := s.cfg.sessionUpdate(tools)
	update.EventID = newEventID()
	if err := sock.Send(update); err != nil {
		return fmt.Errorf("send session.update: %w", err)
	}

	sock.start(s.handleMessage, s.onSocketClosed)
	detector.Start(s.ctx)
	go s.capture(stream, analyser, sock)

	s.log.Info("realtime session opened", "model", s.cfg.Model, "tools", len(tools))
	return nil
}

// hold runs assign under the session lock unless teardown already ran.
func (s *session) hold(assign func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	assign()
	return true
}

func (s *session) markConnected() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connected = true
	s.started = time.Now()
	s.mu.Unlock()

	s.deps.Metrics.SessionStarted()
	if s.deps.Sink != nil {
		s.deps.Sink.OnConnectionChange(true)
	}
}

func (s *session) capture(stream transport.CaptureStream, analyser *audio.Analyser, sock *socket) {
	rate := s.cfg.Capture.SampleRate
	frames := stream.Frames()
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			analyser.Write(frame)

			if !sock.Open() {
				continue
			}
			if rate > 0 && rate != audio.SampleRate {
				frame = audio.Resample(frame, rate, audio.SampleRate)
			}
			err := sock.Send(InputAudioBufferAppendEvent{
				ClientEvent: ClientEvent{EventID: newEventID(), Type: EventInputAudioBufferAppend},
				Audio:       audio.EncodeFloatPCM16(frame),
			})
			if err != nil && !errors.Is(err, ErrSocketClosed) {
				s.log.Warn("failed to send audio frame", "error", err)
			}
		}
	}
}

// onActivity is the detector's callback and the authoritative barge-in
// trigger. The interrupt happens under turnMu so an audio delta that lost
// the race is either flushed or never enqueued.
func (s *session) onActivity(active bool) {
	s.turnMu.Lock()
	s.userSpeaking = active
	interrupted := false
	if q := s.playbackQueue(); active && q != nil && s.assistantSpeaking.Load() {
		q.Interrupt()
		interrupted = true
	}
	s.turnMu.Unlock()

	switch {
	case interrupted:
		s.deps.Metrics.Interrupted()
		s.log.Info("user interrupted assistant")
		s.emit(transport.HostEvent{Type: transport.MessageTypeInterruption})
	case active:
		s.emit(transport.HostEvent{Type: transport.MessageTypeUserSpeakingStarted})
	default:
		s.emit(transport.HostEvent{Type: transport.MessageTypeUserSpeakingStopped})
	}
}

func (s *session) onPlayingChange(playing bool) {
	s.assistantSpeaking.Store(playing)
	s.mu.Lock()
	detector := s.detector
	s.mu.Unlock()
	if detector != nil {
		detector.SetPlaying(playing)
	}
	if s.deps.Sink != nil {
		s.deps.Sink.OnSpeakingChange(playing)
	}
}

func (s *session) onSocketClosed(err error) {
	if err != nil {
		s.log.Warn("realtime socket closed", "error", err)
	} else {
		s.log.Info("realtime socket closed")
	}
	s.teardown()
}

func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		detector, queue, stream, sock, analyser := s.detector, s.queue, s.stream, s.sock, s.analyser
		s.detector, s.queue, s.stream, s.sock, s.analyser = nil, nil, nil, nil, nil
		connected := s.connected
		started := s.started
		s.mu.Unlock()

		s.cancel()
		if detector != nil {
			detector.Stop()
		}
		if queue != nil {
			queue.Close()
		}
		if stream != nil {
			if err := stream.Stop(); err != nil {
				s.log.Warn("failed to stop microphone", "error", err)
			}
		}
		if sock != nil {
			_ = sock.Close()
		}
		if analyser != nil {
			analyser.Disconnect()
		}

		s.client.released(s)

		if connected {
			s.deps.Metrics.SessionEnded(time.Since(started))
			if s.deps.Sink != nil {
				s.deps.Sink.OnConnectionChange(false)
			}
			s.log.Info("realtime session closed")
		}
	})
}

func (s *session) emit(evt transport.HostEvent) {
	if s.deps.Sink != nil {
		s.deps.Sink.OnMessage(evt)
	}
}

func (s *session) socket() *socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sock
}

func (s *session) playbackQueue() *playback.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

func (s *session) language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

func (s *session) setLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
}

func newEventID() string {
	return "evt_" + uuid.NewString()
}
