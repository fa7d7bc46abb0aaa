package realtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eleven-am/dinevoice/internal/transport"
)

func (s *session) handleMessage(data []byte) {
	evt, err := ParseServerEvent(data)
	if err != nil {
		s.log.Warn("failed to parse realtime event", "error", err)
		return
	}

	switch e := evt.(type) {
	case *SessionEvent:
		s.log.Info("realtime session event", "type", e.Type, "session_id", e.Session.ID)
	case *SpeechEvent:
		s.log.Debug("server speech event", "type", e.Type, "item_id", e.ItemID)
	case *InputTranscriptionEvent:
		s.handleUserTranscript(e)
	case *AudioDeltaEvent:
		s.handleAudioDelta(e)
	case *AudioDoneEvent:
		s.log.Debug("assistant audio done", "response_id", e.ResponseID)
	case *TranscriptDeltaEvent:
		s.handleTranscriptDelta(e)
	case *TranscriptDoneEvent:
		s.handleTranscriptDone(e)
	case *FunctionCallDoneEvent:
		s.handleFunctionCall(e)
	case *ErrorEvent:
		s.handleError(e)
	case *UnknownEvent:
		s.log.Debug("unhandled realtime event", "type", e.Type)
	}
}

func (s *session) handleUserTranscript(e *InputTranscriptionEvent) {
	if e.Transcript == "" {
		return
	}
	lang, ok := DetectLanguage(e.Transcript)
	if ok {
		s.setLanguage(lang)
	}
	s.emit(transport.HostEvent{
		Type:     transport.MessageTypeTranscript,
		Text:     e.Transcript,
		Role:     transport.RoleUser,
		Language: lang,
	})
}

// handleAudioDelta enqueues assistant speech unless the user is talking.
// The check and the enqueue share turnMu with the barge-in path.
func (s *session) handleAudioDelta(e *AudioDeltaEvent) {
	pcm, err := base64.StdEncoding.DecodeString(e.Delta)
	if err != nil {
		s.log.Warn("invalid audio delta", "error", err)
		s.deps.Metrics.DecodeFailed()
		return
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	if s.userSpeaking {
		s.deps.Metrics.DeltaDropped()
		return
	}
	if q := s.playbackQueue(); q != nil {
		q.Enqueue(pcm)
	}
}

func (s *session) handleTranscriptDelta(e *TranscriptDeltaEvent) {
	if e.Delta == "" {
		return
	}
	s.transcriptMu.Lock()
	s.transcript.WriteString(e.Delta)
	s.transcriptMu.Unlock()

	s.emit(transport.HostEvent{
		Type:    transport.MessageTypeTranscript,
		Text:    e.Delta,
		Role:    transport.RoleAssistant,
		Partial: true,
	})
}

func (s *session) handleTranscriptDone(e *TranscriptDoneEvent) {
	s.transcriptMu.Lock()
	text := s.transcript.String()
	s.transcript.Reset()
	s.transcriptMu.Unlock()

	if e.Transcript != "" {
		text = e.Transcript
	}
	if text == "" {
		return
	}
	s.emit(transport.HostEvent{
		Type:     transport.MessageTypeTranscript,
		Text:     text,
		Role:     transport.RoleAssistant,
		Language: s.language(),
	})
}

// handleFunctionCall runs the tool off the read loop so audio deltas keep
// flowing. A failed tool sends nothing back.
func (s *session) handleFunctionCall(e *FunctionCallDoneEvent) {
	log := s.log.With("tool", e.Name, "call_id", e.CallID)
	if s.deps.Tools == nil {
		log.Warn("tool call received but no tool handler configured")
		return
	}

	args := json.RawMessage(e.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		log.Error("tool call arguments are not valid json")
		s.deps.Metrics.ToolCall(e.Name, errors.New("invalid arguments"), 0)
		return
	}

	call := transport.ToolCall{
		CallID:    e.CallID,
		ToolName:  e.Name,
		Arguments: args,
		UserID:    s.userID,
		Language:  s.language(),
	}

	go func() {
		start := time.Now()
		result, err := s.deps.Tools.Handle(s.ctx, call)
		s.deps.Metrics.ToolCall(call.ToolName, err, time.Since(start))
		if err != nil {
			log.Error("tool call failed", "error", err)
			return
		}

		output, err := json.Marshal(result)
		if err != nil {
			log.Error("failed to encode tool result", "error", err)
			return
		}

		sock := s.socket()
		if sock == nil {
			return
		}
		if err := s.sendToolOutput(sock, call.CallID, string(output)); err != nil {
			log.Warn("failed to send tool output", "error", err)
		}
	}()
}

func (s *session) sendToolOutput(sock *socket, callID, output string) error {
	item := ConversationItemCreateEvent{
		ClientEvent: ClientEvent{EventID: newEventID(), Type: EventConversationItemCreate},
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
	if err := sock.Send(item); err != nil {
		return err
	}
	return sock.Send(ResponseCreateEvent{
		ClientEvent: ClientEvent{EventID: newEventID(), Type: EventResponseCreate},
	})
}

func (s *session) handleError(e *ErrorEvent) {
	s.log.Error("realtime service error", "type", e.Error.Type, "code", e.Error.Code, "message", e.Error.Message)
	if sink, ok := s.deps.Sink.(transport.ErrorSink); ok {
		sink.OnError(fmt.Errorf("realtime service: %w", e.Error))
	}
}
