package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/dinevoice/internal/voicesession"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type SessionStats struct {
	ActiveVoiceSessions int `json:"active_voice_sessions"`
	EventSubscribers    int `json:"event_subscribers"`
}

type Stats struct {
	Sessions SessionStats `json:"sessions"`
	Runtime  RuntimeStats `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

type SessionsResponse struct {
	Total    int                   `json:"total"`
	Sessions []voicesession.Status `json:"sessions"`
}

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SessionLister interface {
	SessionCount() int
	ListSessions() []voicesession.Status
}

type SubscriberCounter interface {
	SubscriberCount() int
}

type Handler struct {
	critical    map[string]Pinger
	optional    map[string]Pinger
	sessions    SessionLister
	subscribers SubscriberCounter
	version     string
	startTime   time.Time
}

type Config struct {
	// Critical components make the service unhealthy when they fail;
	// optional ones only degrade it.
	Critical    map[string]Pinger
	Optional    map[string]Pinger
	Sessions    SessionLister
	Subscribers SubscriberCounter
	Version     string
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		critical:    cfg.Critical,
		optional:    cfg.Optional,
		sessions:    cfg.Sessions,
		subscribers: cfg.Subscribers,
		version:     cfg.Version,
		startTime:   time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
	e.GET("/health/sessions", h.Sessions)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(name string, p Pinger, failure Status) {
		defer wg.Done()
		status := check(ctx, p, failure)
		mu.Lock()
		components[name] = status
		mu.Unlock()
	}

	for name, p := range h.critical {
		wg.Add(1)
		go run(name, p, StatusUnhealthy)
	}
	for name, p := range h.optional {
		wg.Add(1)
		go run(name, p, StatusDegraded)
	}
	wg.Wait()

	overallStatus := computeOverallStatus(components, h.critical)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := Stats{
		Runtime: RuntimeStats{
			Goroutines:         runtime.NumGoroutine(),
			MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
			MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
			MemorySysMB:        memStats.Sys / 1024 / 1024,
			NumGC:              memStats.NumGC,
		},
	}
	if h.sessions != nil {
		stats.Sessions.ActiveVoiceSessions = h.sessions.SessionCount()
	}
	if h.subscribers != nil {
		stats.Sessions.EventSubscribers = h.subscribers.SubscriberCount()
	}

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats:         stats,
		Components:    components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) Sessions(c echo.Context) error {
	resp := SessionsResponse{Sessions: []voicesession.Status{}}
	if h.sessions != nil {
		resp.Sessions = h.sessions.ListSessions()
	}
	resp.Total = len(resp.Sessions)
	return c.JSON(http.StatusOK, resp)
}

func check(ctx context.Context, p Pinger, failure Status) ComponentStatus {
	start := time.Now()
	if p == nil {
		return ComponentStatus{
			Status:    failure,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "not configured",
		}
	}

	if err := p.Ping(ctx); err != nil {
		return ComponentStatus{
			Status:    failure,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func computeOverallStatus(components map[string]ComponentStatus, critical map[string]Pinger) Status {
	for name := range critical {
		if status, ok := components[name]; ok && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	for _, status := range components {
		if status.Status != StatusHealthy {
			return StatusDegraded
		}
	}

	return StatusHealthy
}
