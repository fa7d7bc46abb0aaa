package gateway

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/dinevoice/internal/shared"
)

// StreamEvents relays a session's host events to the caller as SSE until
// the client goes away.
func (h *Handler) StreamEvents(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.sessions.Status(id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "voice session not found")
		}
		return shared.InternalError("status_failed", "failed to read session status")
	}

	ctx := c.Request().Context()
	events, err := h.events.Subscribe(ctx, id)
	if err != nil {
		h.logger.Error("failed to subscribe to session events", "error", err, "session_id", id)
		if errors.Is(err, ErrTooManySubscribers) {
			return shared.TooManyRequests("too_many_subscribers", "too many event subscribers")
		}
		return shared.InternalError("subscribe_failed", "failed to subscribe to session events")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	conn, err := NewSSEConn(c.Response())
	if err != nil {
		h.logger.Error("failed to create SSE connection", "error", err)
		return nil
	}
	c.Response().Flush()

	h.logger.Info("event stream opened", "session_id", id)
	_ = conn.Run(ctx, events)
	h.logger.Info("event stream closed", "session_id", id)
	return nil
}
