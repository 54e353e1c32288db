package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"coreon/internal/config"
	"coreon/internal/coordinator"
	"coreon/internal/guard"
	"coreon/internal/memory"
	"coreon/internal/metrics"
	"coreon/internal/model/ollama"
	"coreon/internal/server"
	"coreon/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("db_driver", cfg.DB.Driver).
		Str("model", cfg.Ollama.Model).
		Bool("memory", cfg.Memory.Enabled).
		Msg("starting coreond")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	backend := ollama.New(ollama.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		Model:          cfg.Ollama.Model,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		Timeout:        cfg.Ollama.Timeout,
	})

	m := metrics.Global()

	var recaller *memory.Recaller
	if cfg.Memory.Enabled {
		recaller = memory.New(memory.Config{
			Store:          store,
			Embedder:       backend,
			EmbeddingModel: cfg.Ollama.EmbeddingModel,
			TopK:           cfg.Memory.TopK,
			Logger:         log.Logger,
		})
	}

	coord := coordinator.New(coordinator.Config{
		Store:    store,
		Backend:  backend,
		Inflight: guard.NewInflight(rdb, cfg.Redis.InflightTTL),
		Memory:   recaller,
		Logger:   log.Logger,
		Metrics:  m,
	})

	var limiter *guard.RateLimiter
	if cfg.Rate.PerHour > 0 {
		limiter = guard.NewRateLimiter(rdb, cfg.Rate.PerHour)
	}

	srv := server.New(server.Config{
		Store:       store,
		Coordinator: coord,
		RateLimiter: limiter,
		Logger:      log.Logger,
		Metrics:     m,
		HealthPath:  cfg.Server.HealthPath,
		MetricsPath: cfg.Server.MetricsPath,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
