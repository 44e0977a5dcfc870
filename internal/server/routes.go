package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pscheid92/gridpulse/internal/domain"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/health/instances", s.handleInstances)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Event read API (any authenticated identity)
	api := s.echo.Group("/api/events/:eventId", s.identityMiddleware)
	api.GET("", s.handleGetEvent)
	api.GET("/state", s.handleGetState)
	api.GET("/registrations", s.handleListRegistrations)

	// Station write API (role-gated)
	api.POST("/checkin", s.handleCheckIn, s.requireRole(domain.RoleCheckIn))
	api.POST("/weight", s.handleWeight, s.requireRole(domain.RoleWeight))
	api.POST("/inspection", s.handleInspection, s.requireRole(domain.RoleTechnical))

	// Roster management (officials only)
	api.POST("/registrations", s.handleCreateRegistration, s.requireRole(domain.RoleOfficial))
	api.PUT("/registrations/:registrationId", s.handleUpdateRegistration, s.requireRole(domain.RoleOfficial))

	// Live subscription (any authenticated identity)
	s.echo.GET("/ws/events/:eventId", s.handleWebSocket, s.identityMiddleware)
}
