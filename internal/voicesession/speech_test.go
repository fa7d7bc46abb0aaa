package voicesession

import (
	"testing"
	"time"
)

func TestNewSpeechTracker(t *testing.T) {
	tr := NewSpeechTracker()
	if tr.State() != StateIdle {
		t.Errorf("expected initial state %s, got %s", StateIdle, tr.State())
	}
}

func TestSpeechTracker_AssistantSpeaking(t *testing.T) {
	tr := NewSpeechTracker()
	now := time.Now()

	tr.OnAssistantSpeaking(true, now)
	if tr.State() != StateSpeaking {
		t.Errorf("expected %s, got %s", StateSpeaking, tr.State())
	}

	tr.OnAssistantSpeaking(false, now)
	if tr.State() != StateIdle {
		t.Errorf("expected %s after playback ends, got %s", StateIdle, tr.State())
	}
}

func TestSpeechTracker_UserTurn(t *testing.T) {
	tr := NewSpeechTracker()
	now := time.Now()

	tr.OnUserSpeechStart(now)
	if tr.State() != StateListening {
		t.Errorf("expected %s, got %s", StateListening, tr.State())
	}
	if !tr.Snapshot().UserSpeaking {
		t.Error("user should be speaking")
	}

	tr.OnUserSpeechEnd(now)
	if tr.State() != StateIdle {
		t.Errorf("expected %s, got %s", StateIdle, tr.State())
	}
}

func TestSpeechTracker_UserSpeechDuringPlaybackKeepsSpeaking(t *testing.T) {
	tr := NewSpeechTracker()
	now := time.Now()

	tr.OnAssistantSpeaking(true, now)
	tr.OnUserSpeechStart(now)
	if tr.State() != StateSpeaking {
		t.Errorf("expected %s, got %s", StateSpeaking, tr.State())
	}
}

func TestSpeechTracker_Interruption(t *testing.T) {
	tr := NewSpeechTracker()
	now := time.Now()

	tr.OnAssistantSpeaking(true, now)
	tr.OnInterruption(now)
	tr.OnAssistantSpeaking(false, now)

	snap := tr.Snapshot()
	if snap.State != StateInterrupted {
		t.Errorf("expected %s, got %s", StateInterrupted, snap.State)
	}
	if !snap.UserSpeaking || snap.AssistantSpeaking {
		t.Errorf("unexpected flags user=%v assistant=%v", snap.UserSpeaking, snap.AssistantSpeaking)
	}
	if snap.Interruptions != 1 {
		t.Errorf("expected 1 interruption, got %d", snap.Interruptions)
	}

	tr.OnUserSpeechEnd(now)
	if tr.State() != StateIdle {
		t.Errorf("expected %s after user stops, got %s", StateIdle, tr.State())
	}
}

func TestSpeechTracker_LastChange(t *testing.T) {
	tr := NewSpeechTracker()
	t0 := time.Unix(100, 0)
	t1 := time.Unix(200, 0)

	tr.OnUserSpeechStart(t0)
	tr.OnUserSpeechStart(t1)
	if since := tr.Snapshot().Since; !since.Equal(t0) {
		t.Errorf("Since should only move on a state change, got %v", since)
	}
}
