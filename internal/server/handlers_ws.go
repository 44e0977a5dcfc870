package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/gridpulse/internal/domain"
	"github.com/pscheid92/gridpulse/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from arbitrary venue networks; auth happens
	// upstream, not via origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return c.String(400, "Invalid event ID")
	}

	ctx := c.Request().Context()

	if _, err := s.app.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			return c.String(404, "Event not found")
		}
		slog.Error("Failed to load event for subscription", "event_id", eventID, "error", err)
		return c.String(500, "Internal error")
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected",
			"ip", ip,
			"reason", reason,
			"event_id", eventID)
		return c.String(429, "Too many connections")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	if err := s.hub.Subscribe(eventID, conn); err != nil {
		slog.Warn("Failed to subscribe connection", "event_id", eventID, "error", err)
		_ = conn.Close()
		return nil
	}

	// Read pump (blocks until disconnect)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unsubscribe(eventID, conn)

	return nil
}
