package voicesession

import (
	"sync"
	"time"
)

type SpeechState string

const (
	StateIdle        SpeechState = "idle"
	StateListening   SpeechState = "listening"
	StateSpeaking    SpeechState = "speaking"
	StateInterrupted SpeechState = "interrupted"
)

// SpeechTracker folds the client's speaking callbacks into one turn state
// for status reporting. It never drives the conversation itself.
type SpeechTracker struct {
	mu            sync.Mutex
	state         SpeechState
	userSpeaking  bool
	assistant     bool
	interruptions int
	lastChange    time.Time
}

func NewSpeechTracker() *SpeechTracker {
	return &SpeechTracker{state: StateIdle}
}

func (t *SpeechTracker) OnAssistantSpeaking(speaking bool, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assistant = speaking
	switch {
	case speaking:
		t.set(StateSpeaking, now)
	case t.state == StateSpeaking:
		t.set(StateIdle, now)
	}
}

func (t *SpeechTracker) OnUserSpeechStart(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userSpeaking = true
	if t.state == StateIdle {
		t.set(StateListening, now)
	}
}

func (t *SpeechTracker) OnUserSpeechEnd(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userSpeaking = false
	if t.state == StateListening || t.state == StateInterrupted {
		t.set(StateIdle, now)
	}
}

// OnInterruption records a barge-in. The user is speaking from here on,
// even though no separate speech-start is reported.
func (t *SpeechTracker) OnInterruption(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userSpeaking = true
	t.interruptions++
	t.set(StateInterrupted, now)
}

func (t *SpeechTracker) State() SpeechState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

type SpeechSnapshot struct {
	State             SpeechState
	UserSpeaking      bool
	AssistantSpeaking bool
	Interruptions     int
	Since             time.Time
}

func (t *SpeechTracker) Snapshot() SpeechSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return SpeechSnapshot{
		State:             t.state,
		UserSpeaking:      t.userSpeaking,
		AssistantSpeaking: t.assistant,
		Interruptions:     t.interruptions,
		Since:             t.lastChange,
	}
}

func (t *SpeechTracker) set(state SpeechState, now time.Time) {
	if t.state != state {
		t.state = state
		t.lastChange = now
	}
}
