package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/dinevoice/internal/dto"
	"github.com/eleven-am/dinevoice/internal/realtime"
	"github.com/eleven-am/dinevoice/internal/shared"
	"github.com/eleven-am/dinevoice/internal/transport"
	"github.com/eleven-am/dinevoice/internal/voicesession"
)

type SessionService interface {
	Start(ctx context.Context, userID string) (voicesession.Status, error)
	Stop(sessionID string) error
	Status(sessionID string) (voicesession.Status, error)
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan *transport.SessionMessage, error)
}

type ToolLister interface {
	Definitions() []transport.ToolDefinition
}

type Handler struct {
	sessions SessionService
	events   EventSubscriber
	tools    ToolLister
	logger   *slog.Logger
}

func NewHandler(sessions SessionService, events EventSubscriber, tools ToolLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		events:   events,
		tools:    tools,
		logger:   logger.With("component", "voice_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions", h.StartSession)
	g.GET("/sessions/:id", h.GetSession)
	g.DELETE("/sessions/:id", h.StopSession)
	g.GET("/sessions/:id/events", h.StreamEvents)
	g.GET("/tools", h.ListTools)
}

func (h *Handler) StartSession(c echo.Context) error {
	var req dto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return shared.BadRequest("missing_user_id", "user_id is required")
	}

	status, err := h.sessions.Start(c.Request().Context(), req.UserID)
	if err != nil {
		return h.startError(err, req.UserID)
	}
	return c.JSON(http.StatusCreated, status)
}

func (h *Handler) GetSession(c echo.Context) error {
	status, err := h.sessions.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "voice session not found")
		}
		return shared.InternalError("status_failed", "failed to read session status")
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) StopSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.Stop(id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "voice session not found")
		}
		h.logger.Error("failed to stop session", "error", err, "session_id", id)
		return shared.InternalError("stop_failed", "failed to stop voice session")
	}
	return c.JSON(http.StatusOK, dto.StopSessionResponse{SessionID: id, Stopped: true})
}

func (h *Handler) ListTools(c echo.Context) error {
	resp := dto.ToolListResponse{Tools: []dto.ToolInfo{}}
	if h.tools != nil {
		for _, def := range h.tools.Definitions() {
			resp.Tools = append(resp.Tools, dto.ToolInfo{Name: def.Name, Description: def.Description})
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) startError(err error, userID string) error {
	switch {
	case errors.Is(err, voicesession.ErrMissingUser):
		return shared.BadRequest("missing_user_id", "user_id is required")
	case errors.Is(err, voicesession.ErrSessionLimit):
		return shared.Conflict("session_limit", "a voice session is already active")
	case errors.Is(err, realtime.ErrSetup):
		h.logger.Warn("voice session setup failed", "error", err, "user_id", userID)
		return shared.ServiceUnavailable("voice_unavailable", "could not start the voice session").WithInternal(err)
	default:
		h.logger.Error("failed to start session", "error", err, "user_id", userID)
		return shared.InternalError("start_failed", "failed to start voice session")
	}
}
