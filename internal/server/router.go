package server

import (
	"net/http"

	"github.com/cloo-solutions/signmaker/internal/api/handlers"
	"github.com/cloo-solutions/signmaker/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	ChatHandler   *handlers.ChatHandler
	HealthHandler *handlers.HealthHandler
	Metrics       http.Handler
	RateLimiter   *middleware.RateLimiter
	CORSOrigin    string
	Logger        *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.OptionalBearer)
	r.Use(middleware.Tracing)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigin))

	r.Get("/health", cfg.HealthHandler.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxBodyBytes))
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Post("/chat", cfg.ChatHandler.Stream)
		r.Post("/functions/v1/chat", cfg.ChatHandler.Stream)
	})

	return r
}
