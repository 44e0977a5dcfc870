package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/gridpulse/internal/broadcast"
	"github.com/pscheid92/gridpulse/internal/config"
	"github.com/pscheid92/gridpulse/internal/coordination"
	"github.com/pscheid92/gridpulse/internal/domain"
	apperrors "github.com/pscheid92/gridpulse/internal/errors"
)

const (
	connectionRatePerSecond = 10.0
	connectionRateBurst     = 20
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       domain.AppService
	hub       *broadcast.Hub
	limits    *ConnectionLimits
	pool      *pgxpool.Pool
	redis     *goredis.Client
	registry  *coordination.InstanceRegistry
	startTime time.Time

	// test seams for health checks
	postgresHealthCheck postgresHealthChecker
	redisHealthCheck    redisHealthChecker
}

// NewServer wires the HTTP surface: the JSON write API, the event state
// snapshot, and the WebSocket subscribe endpoint. redis may be nil when no
// cross-instance relay is configured.
func NewServer(cfg *config.Config, svc domain.AppService, hub *broadcast.Hub, pool *pgxpool.Pool, redis *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(correlationMiddleware)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       svc,
		hub:       hub,
		limits:    NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP, connectionRatePerSecond, connectionRateBurst),
		pool:      pool,
		redis:     redis,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// SetInstanceRegistry enables the /health/instances view. Only multi-instance
// deployments with Redis set one.
func (s *Server) SetInstanceRegistry(reg *coordination.InstanceRegistry) {
	s.registry = reg
}

// CurrentConnections reports the live subscriber connection count of this
// instance.
func (s *Server) CurrentConnections() int {
	return int(s.limits.Global().Current())
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
