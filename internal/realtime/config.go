package realtime

import (
	"fmt"
	"net/url"

	"github.com/eleven-am/dinevoice/internal/audio"
	"github.com/eleven-am/dinevoice/internal/transport"
	"github.com/eleven-am/dinevoice/internal/vad"
)

const (
	DefaultURL          = "wss://api.openai.com/v1/realtime"
	DefaultModel        = "gpt-4o-realtime-preview"
	DefaultVoice        = "alloy"
	DefaultInstructions = "You are a friendly dining assistant. Help the user discover restaurants and current offers near them. Keep answers short and conversational, and reply in the language the user speaks."
	BetaHeader          = "realtime=v1"

	defaultTemperature       = 0.8
	defaultMaxOutputTokens   = 4096
	defaultServerVADThresh   = 0.5
	defaultPrefixPaddingMs   = 300
	defaultSilenceDurationMs = 500
	defaultTranscribeModel   = "whisper-1"
	audioFormatPCM16         = "pcm16"
)

type Config struct {
	URL             string
	Model           string
	Voice           string
	Instructions    string
	Modalities      []string
	// Temperature is nil for the default; zero is a valid setting.
	Temperature     *float64
	MaxOutputTokens int
	TranscribeModel string
	TurnDetection   *TurnDetectionConfig

	Capture  transport.CaptureConstraints
	Analyser audio.AnalyserConfig
	VAD      vad.Config
}

func DefaultConfig() Config {
	return Config{
		URL:             DefaultURL,
		Model:           DefaultModel,
		Voice:           DefaultVoice,
		Instructions:    DefaultInstructions,
		Modalities:      []string{"text", "audio"},
		Temperature:     Float(defaultTemperature),
		MaxOutputTokens: defaultMaxOutputTokens,
		TranscribeModel: defaultTranscribeModel,
		TurnDetection: &TurnDetectionConfig{
			Type:              "server_vad",
			Threshold:         defaultServerVADThresh,
			PrefixPaddingMs:   defaultPrefixPaddingMs,
			SilenceDurationMs: defaultSilenceDurationMs,
		},
		Capture: transport.CaptureConstraints{
			SampleRate:       audio.SampleRate,
			Channels:         audio.Channels,
			FrameSize:        audio.DefaultFrameSize,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Analyser: audio.AnalyserConfig{FFTSize: audio.DefaultFFTSize},
		VAD: vad.Config{
			Threshold:         vad.DefaultThreshold,
			BufferLength:      vad.DefaultBufferLength,
			ConsecutiveFrames: vad.DefaultConsecutiveFrames,
			FrameInterval:     vad.DefaultFrameInterval,
		},
	}
}

// Float returns a pointer to v, for optional Config fields.
func Float(v float64) *float64 {
	return &v
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Voice == "" {
		c.Voice = d.Voice
	}
	if c.Instructions == "" {
		c.Instructions = d.Instructions
	}
	if len(c.Modalities) == 0 {
		c.Modalities = d.Modalities
	}
	if c.Temperature == nil {
		c.Temperature = d.Temperature
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = d.MaxOutputTokens
	}
	if c.TranscribeModel == "" {
		c.TranscribeModel = d.TranscribeModel
	}
	if c.Capture.SampleRate == 0 {
		c.Capture = d.Capture
	}
	if c.Analyser.FFTSize == 0 {
		c.Analyser = d.Analyser
	}
	return c
}

func (c Config) dialURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if q.Get("model") == "" {
		q.Set("model", c.Model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sessionUpdate builds the session.update sent once the socket opens.
// MaxOutputTokens below zero means unlimited.
func (c Config) sessionUpdate(tools []transport.ToolDefinition) SessionUpdateEvent {
	var maxTokens any = c.MaxOutputTokens
	if c.MaxOutputTokens < 0 {
		maxTokens = "inf"
	}

	session := SessionConfig{
		Modalities:              c.Modalities,
		Instructions:            c.Instructions,
		Voice:                   c.Voice,
		InputAudioFormat:        audioFormatPCM16,
		OutputAudioFormat:       audioFormatPCM16,
		InputAudioTranscription: &TranscriptionConfig{Model: c.TranscribeModel},
		TurnDetection:           c.TurnDetection,
		Temperature:             c.Temperature,
		MaxResponseOutputTokens: maxTokens,
	}
	for _, t := range tools {
		session.Tools = append(session.Tools, ToolDef{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	if len(session.Tools) > 0 {
		session.ToolChoice = "auto"
	}

	return SessionUpdateEvent{
		ClientEvent: ClientEvent{Type: EventSessionUpdate},
		Session:     session,
	}
}
