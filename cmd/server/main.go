package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/gridpulse/internal/app"
	"github.com/pscheid92/gridpulse/internal/broadcast"
	"github.com/pscheid92/gridpulse/internal/config"
	"github.com/pscheid92/gridpulse/internal/coordination"
	"github.com/pscheid92/gridpulse/internal/database"
	"github.com/pscheid92/gridpulse/internal/logging"
	"github.com/pscheid92/gridpulse/internal/redis"
	"github.com/pscheid92/gridpulse/internal/relay"
	"github.com/pscheid92/gridpulse/internal/server"
	"github.com/pscheid92/gridpulse/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func runGracefulShutdown(cfg *config.Config, srv *server.Server, hub *broadcast.Hub, cancelRelay context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelRelay()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	eventRepo := database.NewEventRepo(pool)
	registrationRepo := database.NewRegistrationRepo(pool)
	checkInRepo := database.NewCheckInRepo(pool)
	weightRepo := database.NewWeightControlRepo(pool)
	inspectionRepo := database.NewInspectionRepo(pool)

	hub := broadcast.NewHub(nil, nil, clock, cfg.MaxSubscribersPerEvent)

	// Redis is optional: without it the instance runs standalone and skips
	// the cross-instance relay.
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()

	var (
		redisClient *goredis.Client
		announcer   app.Announcer = hub
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisClient = client
		defer func() { _ = redisClient.Close() }()

		rly := relay.New(redisClient, hub)
		go rly.Start(relayCtx)
		announcer = rly
		slog.Info("Cross-instance relay enabled")
	}

	appSvc := app.NewService(eventRepo, registrationRepo, checkInRepo, weightRepo, inspectionRepo, announcer, clock)

	srv := server.NewServer(cfg, appSvc, hub, pool, redisClient)

	if redisClient != nil {
		registry := coordination.NewInstanceRegistry(redisClient, uuid.NewString(), version.Get().Version, 15*time.Second, srv.CurrentConnections)
		go registry.Start(relayCtx)
		srv.SetInstanceRegistry(registry)
	}

	done := runGracefulShutdown(cfg, srv, hub, cancelRelay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
