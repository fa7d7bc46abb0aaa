package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.SessionEnded(time.Second)
	m.SessionFailed()
	m.Interrupted()
	m.DeltaDropped()
	m.DecodeFailed()
	m.ToolCall("search_restaurants", nil, time.Millisecond)
	m.TokenRequest("static", nil)
}

func TestSessionLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded(3 * time.Second)

	if got := testutil.ToFloat64(m.SessionsStarted); got != 2 {
		t.Errorf("expected 2 sessions started, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}
}

func TestToolCallStatus(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ToolCall("list_offers", nil, time.Millisecond)
	m.ToolCall("list_offers", errors.New("boom"), time.Millisecond)
	m.ToolCall("list_offers", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("list_offers", "ok")); got != 1 {
		t.Errorf("expected 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("list_offers", "error")); got != 2 {
		t.Errorf("expected 2 failed calls, got %v", got)
	}
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Interrupted()
	m.DeltaDropped()
	m.DeltaDropped()
	m.DecodeFailed()

	if got := testutil.ToFloat64(m.Interruptions); got != 1 {
		t.Errorf("expected 1 interruption, got %v", got)
	}
	if got := testutil.ToFloat64(m.DroppedDeltas); got != 2 {
		t.Errorf("expected 2 dropped deltas, got %v", got)
	}
	if got := testutil.ToFloat64(m.DecodeFailures); got != 1 {
		t.Errorf("expected 1 decode failure, got %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
