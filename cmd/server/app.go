package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/dedupe"
	"github.com/vaelis-ai/vaelis-api/internal/platform/chatcompletion"
	"github.com/vaelis-ai/vaelis-api/internal/platform/postgres"
	"github.com/vaelis-ai/vaelis-api/internal/ratelimit"
	"github.com/vaelis-ai/vaelis-api/internal/search"
	"github.com/vaelis-ai/vaelis-api/internal/service"
	"github.com/vaelis-ai/vaelis-api/internal/service/auth"
)

const (
	// limiterPruneInterval is how often idle rate-limit buckets are dropped.
	limiterPruneInterval = time.Minute
	limiterIdle          = 10 * time.Minute
)

// application holds the shared dependencies of the server so that they can
// be wired once and released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *redis.Client

	jwtService  auth.JWTService
	chatService service.ChatService
	limiter     *ratelimit.Limiter

	// memoryDedupe is set when no Redis is configured; it needs sweeping.
	memoryDedupe *dedupe.MemoryCache

	background sync.WaitGroup
}

// newApplication wires the services. rdb may be nil, in which case retry
// dedupe is kept in process memory.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB, rdb *redis.Client) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	generator, err := chatcompletion.NewClient(logger.With("component", "chat_completion"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat completion client: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("LLM API key not set, generation requests will report service_unavailable")
	}

	searcher, err := search.NewClient(logger.With("component", "search"), cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search client: %w", err)
	}

	var cache dedupe.Cache
	if rdb != nil {
		cache = dedupe.NewRedisCache(rdb, cfg.Dedupe.TTL())
		logger.Info("retry dedupe backed by redis", "ttl", cfg.Dedupe.TTL())
	} else {
		app.memoryDedupe = dedupe.NewMemoryCache(cfg.Dedupe.TTL(), dedupe.WithMaxEntries(cfg.Dedupe.MaxEntries))
		cache = app.memoryDedupe
		logger.Info("retry dedupe kept in memory",
			"ttl", cfg.Dedupe.TTL(),
			"max_entries", cfg.Dedupe.MaxEntries)
	}

	app.chatService, err = service.NewChatService(service.ChatDeps{
		Generator:     generator,
		Searcher:      searcher,
		Dedupe:        cache,
		Conversations: postgres.NewPostgresConversationStore(db, logger),
		Messages:      postgres.NewPostgresMessageStore(db, logger),
		DB:            db,
		Logger:        logger,
		DedupePerUser: cfg.Dedupe.PerUser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}

	app.limiter = ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	logger.Info("application initialized")
	return app, nil
}

// Run starts the background sweepers and serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	app.startBackground(bgCtx)

	err := app.startHTTPServer(ctx, app.setupRouter())

	cancel()
	app.background.Wait()
	app.cleanup()

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (app *application) startBackground(ctx context.Context) {
	if app.memoryDedupe != nil {
		app.background.Add(1)
		go func() {
			defer app.background.Done()
			app.memoryDedupe.Run(ctx, app.config.Dedupe.SweepInterval())
		}()
	}

	app.background.Add(1)
	go func() {
		defer app.background.Done()
		app.limiter.Run(ctx, limiterPruneInterval, limiterIdle)
	}()
}

// cleanup releases the database and Redis connections.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
