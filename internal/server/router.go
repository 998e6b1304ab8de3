package server

import (
	"net/http"

	"github.com/cloo-solutions/ragbot/internal/api"
	"github.com/cloo-solutions/ragbot/internal/api/handlers"
	"github.com/cloo-solutions/ragbot/internal/api/middleware"
	"github.com/cloo-solutions/ragbot/internal/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	Logger      *zap.Logger
	APIKeys     []string
	ChatHandler *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))

		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Post("/search", cfg.ChatHandler.Search)
		r.Get("/namespaces", cfg.ChatHandler.Namespaces)
	})

	return r
}
