package transport

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageType_Constants(t *testing.T) {
	tests := []struct {
		msgType MessageType
		want    string
	}{
		{MessageTypeTranscript, "transcript"},
		{MessageTypeInterruption, "interruption"},
		{MessageTypeUserSpeakingStarted, "user_speaking_started"},
		{MessageTypeUserSpeakingStopped, "user_speaking_stopped"},
		{MessageTypeSpeakingChanged, "speaking_changed"},
		{MessageTypeConnectionChanged, "connection_changed"},
		{MessageTypeError, "error"},
	}

	for _, tt := range tests {
		if string(tt.msgType) != tt.want {
			t.Errorf("MessageType = %q, want %q", tt.msgType, tt.want)
		}
	}
}

func TestHostEvent_JSONOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(HostEvent{Type: MessageTypeInterruption})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"type":"interruption"}` {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestHostEvent_JSONTranscript(t *testing.T) {
	evt := HostEvent{Type: MessageTypeTranscript, Text: "hola", Role: RoleUser, Language: "es"}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["role"] != "user" {
		t.Errorf("role = %v, want user", decoded["role"])
	}
	if decoded["language"] != "es" {
		t.Errorf("language = %v, want es", decoded["language"])
	}
	if _, ok := decoded["partial"]; ok {
		t.Error("partial should be omitted when false")
	}
}

func TestAudioBuffer_Duration(t *testing.T) {
	buf := &AudioBuffer{SampleRate: 24000, Channels: 1, Samples: make([]int16, 12000)}
	if got := buf.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", got)
	}
}

func TestAudioBuffer_DurationNil(t *testing.T) {
	var buf *AudioBuffer
	if got := buf.Duration(); got != 0 {
		t.Errorf("Duration() = %v, want 0", got)
	}
	if got := (&AudioBuffer{}).Duration(); got != 0 {
		t.Errorf("Duration() on zero buffer = %v, want 0", got)
	}
}
