// Package main is the entry point of the Vaelis API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/platform/postgres"
	"github.com/vaelis-ai/vaelis-api/internal/platform/redisclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads configuration, opens the database and the optional Redis
// connection, applies migrations and serves until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_configured", cfg.LLM.APIKey != "",
		"search_configured", cfg.Search.APIKey != "",
		"redis_configured", cfg.Redis.URL != "")

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return err
	}
	log.Info("database connection established")

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = redisclient.Open(ctx, cfg.Redis.URL)
		if err != nil {
			_ = db.Close()
			return err
		}
		log.Info("redis connection established")
	}

	app, err := newApplication(cfg, log, db, rdb)
	if err != nil {
		_ = db.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
