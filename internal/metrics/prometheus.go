package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the voice service collectors. All methods are safe on a nil
// receiver so components can run without metrics wired.
type Metrics struct {
	// Sessions
	SessionsStarted prometheus.Counter
	SessionFailures prometheus.Counter
	ActiveSessions  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Turn taking
	Interruptions prometheus.Counter
	DroppedDeltas prometheus.Counter

	// Playback
	DecodeFailures prometheus.Counter

	// Tools
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// Token issuing
	TokenRequests *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voice_sessions_total",
			Help: "Total number of realtime voice sessions connected",
		}),
		SessionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voice_session_setup_failures_total",
			Help: "Total number of voice sessions that failed during setup",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voice_active_sessions",
			Help: "Current number of connected voice sessions",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_session_duration_seconds",
			Help:    "Duration of voice sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "voice_interruptions_total",
			Help: "Total number of barge-in interruptions of assistant playback",
		}),
		DroppedDeltas: f.NewCounter(prometheus.CounterOpts{
			Name: "voice_audio_chunks_dropped_total",
			Help: "Assistant audio chunks dropped because the user was speaking",
		}),
		DecodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voice_playback_decode_failures_total",
			Help: "Assistant audio chunks skipped because they could not be decoded or started",
		}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_tool_calls_total",
			Help: "Total number of tool calls by tool and status",
		}, []string{"tool", "status"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_tool_call_duration_seconds",
			Help:    "Time spent handling tool calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}, []string{"tool"}),
		TokenRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_token_requests_total",
			Help: "Total number of realtime credential requests by issuer and status",
		}, []string{"issuer", "status"}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded(d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) SessionFailed() {
	if m == nil {
		return
	}
	m.SessionFailures.Inc()
}

func (m *Metrics) Interrupted() {
	if m == nil {
		return
	}
	m.Interruptions.Inc()
}

func (m *Metrics) DeltaDropped() {
	if m == nil {
		return
	}
	m.DroppedDeltas.Inc()
}

func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.DecodeFailures.Inc()
}

func (m *Metrics) ToolCall(tool string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) TokenRequest(issuer string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TokenRequests.WithLabelValues(issuer, status).Inc()
}
