package transport

import "context"

// EventSink receives the voice client's callbacks. Implementations must not
// call back into the client synchronously.
type EventSink interface {
	OnMessage(event HostEvent)
	OnSpeakingChange(speaking bool)
	OnConnectionChange(connected bool)
}

type ErrorSink interface {
	OnError(err error)
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type ToolHandler interface {
	Definitions() []ToolDefinition
	Handle(ctx context.Context, call ToolCall) (any, error)
}

type CaptureStream interface {
	Frames() <-chan []float32
	Stop() error
}

type Microphone interface {
	Open(ctx context.Context, constraints CaptureConstraints) (CaptureStream, error)
}

type PlaybackUnit interface {
	Stop()
}

// Player decodes a WAV container and plays it. Start must not block;
// onEnded fires once when playback finishes on its own, never after Stop.
type Player interface {
	Decode(ctx context.Context, wav []byte) (*AudioBuffer, error)
	Start(buf *AudioBuffer, onEnded func()) (PlaybackUnit, error)
}
