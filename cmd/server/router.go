package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vaelis-ai/vaelis-api/internal/api"
	apiMiddleware "github.com/vaelis-ai/vaelis-api/internal/api/middleware"
	"github.com/vaelis-ai/vaelis-api/internal/api/shared"
)

const healthCheckTimeout = 2 * time.Second

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis,omitempty"`
}

// setupRouter builds the chi router with the middleware chain and routes.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Recoverer)

	chatHandler := api.NewChatHandler(app.chatService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Use(apiMiddleware.RateLimit(app.limiter))

		r.Post("/ai/generate", chatHandler.Generate)
		r.Post("/ai/retry", chatHandler.Retry)

		r.Get("/conversations", chatHandler.ListConversations)
		r.Get("/conversations/{id}", chatHandler.GetConversation)
		r.Post("/conversations/{id}/title", chatHandler.GenerateTitle)
		r.Post("/conversations/{id}/pin", chatHandler.SetPinned)
		r.Post("/conversations/{id}/tags", chatHandler.SetTags)
	})

	r.Get("/health", app.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// handleHealth pings the database and, when configured, Redis.
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Warn("health check: database ping failed", "error", err)
		resp.Database = "unavailable"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	if app.redis != nil {
		resp.Redis = "ok"
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.logger.Warn("health check: redis ping failed", "error", err)
			resp.Redis = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	shared.RespondWithJSON(w, r, status, resp)
}
