package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/dinevoice/internal/audio"
	"github.com/eleven-am/dinevoice/internal/transport"
)

const waitTimeout = 2 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// fakeService stands in for the realtime speech service.
type fakeService struct {
	srv      *httptest.Server
	received chan map[string]any
	headers  chan http.Header

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		received: make(chan map[string]any, 256),
		headers:  make(chan http.Header, 1),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case f.headers <- r.Header.Clone():
		default:
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if json.Unmarshal(data, &msg) == nil {
				f.received <- msg
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeService) send(t *testing.T, v any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.conn, "no client connected")
	require.NoError(t, f.conn.WriteJSON(v))
}

func (f *fakeService) closeConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
}

// next returns the next received message of the given type, skipping others.
func (f *fakeService) next(t *testing.T, eventType string) map[string]any {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case msg := <-f.received:
			if msg["type"] == eventType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
			return nil
		}
	}
}

// none asserts no message of eventType arrives within d.
func (f *fakeService) none(t *testing.T, eventType string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case msg := <-f.received:
			if msg["type"] == eventType {
				t.Fatalf("unexpected %s: %v", eventType, msg)
			}
		case <-deadline:
			return
		}
	}
}

type fakeTokens struct {
	token string
	err   error
	calls atomic.Int32
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.calls.Add(1)
	return f.token, f.err
}

type fakeStream struct {
	frames chan []float32
	stops  atomic.Int32
	once   sync.Once
}

func (s *fakeStream) Frames() <-chan []float32 { return s.frames }

func (s *fakeStream) Stop() error {
	s.stops.Add(1)
	s.once.Do(func() { close(s.frames) })
	return nil
}

type fakeMic struct {
	err         error
	opened      atomic.Int32
	constraints transport.CaptureConstraints
	stream      *fakeStream
}

func newFakeMic() *fakeMic {
	return &fakeMic{stream: &fakeStream{frames: make(chan []float32, 8)}}
}

func (m *fakeMic) Open(_ context.Context, c transport.CaptureConstraints) (transport.CaptureStream, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.opened.Add(1)
	m.constraints = c
	return m.stream, nil
}

type fakeUnit struct {
	stopped atomic.Bool
}

func (u *fakeUnit) Stop() { u.stopped.Store(true) }

type fakePlayer struct {
	mu    sync.Mutex
	units []*fakeUnit
}

func (p *fakePlayer) Decode(_ context.Context, wav []byte) (*transport.AudioBuffer, error) {
	parsed, err := audio.ParseWAV(wav)
	if err != nil {
		return nil, err
	}
	return &transport.AudioBuffer{SampleRate: parsed.SampleRate, Channels: parsed.Channels, Samples: parsed.Samples}, nil
}

func (p *fakePlayer) Start(*transport.AudioBuffer, func()) (transport.PlaybackUnit, error) {
	u := &fakeUnit{}
	p.mu.Lock()
	p.units = append(p.units, u)
	p.mu.Unlock()
	return u, nil
}

func (p *fakePlayer) started() []*fakeUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeUnit(nil), p.units...)
}

type fakeTools struct {
	result any
	err    error
	calls  chan transport.ToolCall
}

func (f *fakeTools) Definitions() []transport.ToolDefinition {
	return []transport.ToolDefinition{{
		Name:        "search_restaurants",
		Description: "Search restaurants",
		Parameters:  map[string]any{"type": "object"},
	}}
}

func (f *fakeTools) Handle(_ context.Context, call transport.ToolCall) (any, error) {
	f.calls <- call
	return f.result, f.err
}

type recordingSink struct {
	messages   chan transport.HostEvent
	speaking   chan bool
	connection chan bool
	errors     chan error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		messages:   make(chan transport.HostEvent, 64),
		speaking:   make(chan bool, 64),
		connection: make(chan bool, 8),
		errors:     make(chan error, 8),
	}
}

func (s *recordingSink) OnMessage(evt transport.HostEvent) { s.messages <- evt }
func (s *recordingSink) OnSpeakingChange(v bool)           { s.speaking <- v }
func (s *recordingSink) OnConnectionChange(v bool)         { s.connection <- v }
func (s *recordingSink) OnError(err error)                 { s.errors <- err }

func (s *recordingSink) nextMessage(t *testing.T) transport.HostEvent {
	t.Helper()
	select {
	case evt := <-s.messages:
		return evt
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for host message")
		return transport.HostEvent{}
	}
}

func waitBool(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case v := <-ch:
			if v == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

type harness struct {
	client  *Client
	service *fakeService
	tokens  *fakeTokens
	mic     *fakeMic
	player  *fakePlayer
	tools   *fakeTools
	sink    *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		service: newFakeService(t),
		tokens:  &fakeTokens{token: "ek_test"},
		mic:     newFakeMic(),
		player:  &fakePlayer{},
		tools:   &fakeTools{calls: make(chan transport.ToolCall, 4)},
		sink:    newRecordingSink(),
	}

	cfg := DefaultConfig()
	cfg.URL = h.service.url()
	h.client = NewClient(cfg, Deps{
		Tokens:     h.tokens,
		Microphone: h.mic,
		Player:     h.player,
		Tools:      h.tools,
		Sink:       h.sink,
	}, nil)
	t.Cleanup(h.client.Disconnect)
	return h
}

func (h *harness) connect(t *testing.T) *session {
	t.Helper()
	require.NoError(t, h.client.Connect(context.Background(), "user-1"))
	h.service.next(t, EventSessionUpdate)

	h.client.mu.Lock()
	s := h.client.current
	h.client.mu.Unlock()
	require.NotNil(t, s)
	return s
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")
