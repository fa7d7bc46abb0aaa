package transport

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MessageTypeTranscript          MessageType = "transcript"
	MessageTypeInterruption        MessageType = "interruption"
	MessageTypeUserSpeakingStarted MessageType = "user_speaking_started"
	MessageTypeUserSpeakingStopped MessageType = "user_speaking_stopped"
	MessageTypeSpeakingChanged     MessageType = "speaking_changed"
	MessageTypeConnectionChanged   MessageType = "connection_changed"
	MessageTypeError               MessageType = "error"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HostEvent is what the voice client reports to whatever mounted it.
type HostEvent struct {
	Type     MessageType `json:"type"`
	Text     string      `json:"text,omitempty"`
	Role     Role        `json:"role,omitempty"`
	Language string      `json:"language,omitempty"`
	Partial  bool        `json:"partial,omitempty"`
}

// SessionMessage is a HostEvent or state change stamped for fan-out to
// host subscribers.
type SessionMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Event     *HostEvent  `json:"event,omitempty"`
	Active    *bool       `json:"active,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type CaptureConstraints struct {
	SampleRate       int
	Channels         int
	FrameSize        int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// AudioBuffer is decoded PCM ready for a playback sink.
type AudioBuffer struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

type ToolCall struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	UserID    string          `json:"user_id"`
	Language  string          `json:"language"`
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}
