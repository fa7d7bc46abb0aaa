package realtime

import (
	"encoding/json"
	"fmt"
)

// Inbound event tags.
const (
	EventError                     = "error"
	EventSessionCreated            = "session.created"
	EventSessionUpdated            = "session.updated"
	EventSpeechStarted             = "input_audio_buffer.speech_started"
	EventSpeechStopped             = "input_audio_buffer.speech_stopped"
	EventInputTranscriptionDone    = "conversation.item.input_audio_transcription.completed"
	EventAudioDelta                = "response.audio.delta"
	EventAudioDone                 = "response.audio.done"
	EventAudioTranscriptDelta      = "response.audio_transcript.delta"
	EventAudioTranscriptDone       = "response.audio_transcript.done"
	EventFunctionCallArgumentsDone = "response.function_call_arguments.done"
)

// Outbound event tags.
const (
	EventSessionUpdate          = "session.update"
	EventInputAudioBufferAppend = "input_audio_buffer.append"
	EventConversationItemCreate = "conversation.item.create"
	EventResponseCreate         = "response.create"
)

type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// SessionConfig is the body of session.update. TurnDetection has no
// omitempty: an explicit null disables server VAD.
type SessionConfig struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionConfig `json:"turn_detection"`
	Tools                   []ToolDef            `json:"tools,omitempty"`
	ToolChoice              string               `json:"tool_choice,omitempty"`
	Temperature             *float64             `json:"temperature,omitempty"`
	MaxResponseOutputTokens any                  `json:"max_response_output_tokens,omitempty"`
}

type TranscriptionConfig struct {
	Model string `json:"model"`
}

type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

type ToolDef struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type InputAudioBufferAppendEvent struct {
	ClientEvent
	Audio string `json:"audio"`
}

type ConversationItemCreateEvent struct {
	ClientEvent
	Item ConversationItem `json:"item"`
}

type ConversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

type ResponseCreateEvent struct {
	ClientEvent
}

type ServerEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

type ErrorEvent struct {
	ServerEvent
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

func (d ErrorDetail) Error() string {
	if d.Code != "" {
		return fmt.Sprintf("%s (%s): %s", d.Type, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Type, d.Message)
}

type SessionEvent struct {
	ServerEvent
	Session struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"session"`
}

type SpeechEvent struct {
	ServerEvent
	AudioStartMs int    `json:"audio_start_ms,omitempty"`
	AudioEndMs   int    `json:"audio_end_ms,omitempty"`
	ItemID       string `json:"item_id"`
}

type InputTranscriptionEvent struct {
	ServerEvent
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type AudioDeltaEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

type AudioDoneEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
}

type TranscriptDeltaEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

type TranscriptDoneEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type FunctionCallDoneEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
}

// UnknownEvent is returned for tags this client does not handle.
type UnknownEvent struct {
	ServerEvent
}

func ParseServerEvent(data []byte) (any, error) {
	var base ServerEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case EventError:
		var e ErrorEvent
		return &e, json.Unmarshal(data, &e)
	case EventSessionCreated, EventSessionUpdated:
		var e SessionEvent
		return &e, json.Unmarshal(data, &e)
	case EventSpeechStarted, EventSpeechStopped:
		var e SpeechEvent
		return &e, json.Unmarshal(data, &e)
	case EventInputTranscriptionDone:
		var e InputTranscriptionEvent
		return &e, json.Unmarshal(data, &e)
	case EventAudioDelta:
		var e AudioDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case EventAudioDone:
		var e AudioDoneEvent
		return &e, json.Unmarshal(data, &e)
	case EventAudioTranscriptDelta:
		var e TranscriptDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case EventAudioTranscriptDone:
		var e TranscriptDoneEvent
		return &e, json.Unmarshal(data, &e)
	case EventFunctionCallArgumentsDone:
		var e FunctionCallDoneEvent
		return &e, json.Unmarshal(data, &e)
	default:
		return &UnknownEvent{ServerEvent: base}, nil
	}
}
