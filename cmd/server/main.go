package main

import (
	"context"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/bot"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/config"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/db"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/difficulty"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/events"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/hub"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/logger"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/repository"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/server"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/session"
	"ctchen222/Adaptive-Tic-Tac-Toe/internal/telemetry"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()
	logger.Init(cfg.LogLevel, cfg.OtelEnabled)

	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	statsRepo, closeStats, err := newStatsRepository(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeStats()

	// Create repositories and services
	gameRepo := repository.NewGameRepository(rdb, cfg.GameTTL)
	selector := bot.NewSelector(bot.DefaultSource())
	sessions := session.NewService(
		gameRepo,
		statsRepo,
		events.NewRedisPublisher(rdb),
		selector,
		difficulty.NewBandMapper(bot.DefaultSource()),
		session.Options{BotThinkDelay: cfg.BotThinkDelay},
	)

	// Create hub
	h := hub.NewHub(events.NewRedisSubscriber(rdb), server.Snapshot(sessions))
	go h.Run(ctx)

	srv := server.NewServer(h, sessions, selector, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server started", "port", cfg.Port, "stats.backend", cfg.StatsBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server exiting")
	return nil
}

// newStatsRepository opens the configured stats backend.
func newStatsRepository(ctx context.Context, cfg *config.Config, rdb *redis.Client) (repository.StatsRepository, func(), error) {
	if cfg.StatsBackend == config.StatsBackendRedis {
		return repository.NewRedisStatsRepository(rdb), func() {}, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.StatsBackend, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitializeSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return repository.NewSQLStatsRepository(sqlDB), func() { sqlDB.Close() }, nil
}
