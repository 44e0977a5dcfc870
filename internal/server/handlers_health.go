package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/gridpulse/internal/version"
)

// redisHealthChecker is a minimal interface for Redis health checks
type redisHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

// postgresHealthChecker is a minimal interface for PostgreSQL health checks
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

type healthCheck struct {
	name string
	fn   func(context.Context) error
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
		"connections": map[string]any{
			"current":      s.limits.Global().Current(),
			"max":          s.limits.Global().Max(),
			"capacity_pct": s.limits.Global().CapacityPct(),
			"unique_ips":   s.limits.PerIP().UniqueIPs(),
		},
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []healthCheck{
		{"postgres", s.checkPostgres},
	}
	// Redis is optional: single-instance deployments run without the relay
	if s.redis != nil || s.redisHealthCheck != nil {
		checks = append(checks, healthCheck{"redis", s.checkRedis})
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) checkPostgres(ctx context.Context) error {
	checker := s.getPostgresHealthChecker()
	return checker.Ping(ctx)
}

func (s *Server) checkRedis(ctx context.Context) error {
	client := s.getRedisHealthChecker()
	return client.Ping(ctx).Err()
}

func (s *Server) getPostgresHealthChecker() postgresHealthChecker {
	if s.postgresHealthCheck != nil {
		return s.postgresHealthCheck
	}
	return s.pool
}

func (s *Server) getRedisHealthChecker() redisHealthChecker {
	if s.redisHealthCheck != nil {
		return s.redisHealthCheck
	}
	return s.redis
}

// handleInstances lists the live instances of the deployment. Only available
// when the Redis-backed registry is configured.
func (s *Server) handleInstances(c echo.Context) error {
	if s.registry == nil {
		return c.JSON(404, map[string]string{"error": "instance registry not configured"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	instances, err := s.registry.ActiveInstances(ctx)
	if err != nil {
		return c.JSON(503, map[string]string{"error": "failed to read instance registry"})
	}
	return c.JSON(200, map[string]any{"instances": instances})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
