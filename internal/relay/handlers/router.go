package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/scenesync/internal/relay"
	"github.com/iudanet/scenesync/internal/relay/middleware"
)

// TokenService issues and validates peer tokens.
type TokenService interface {
	TokenIssuer
	middleware.TokenValidator
}

// RouterConfig описывает зависимости HTTP API relay.
type RouterConfig struct {
	Hub         *relay.Hub
	Tokens      TokenService
	Logger      *slog.Logger
	Version     string
	TokenRate   int // TokenRate запросов токена с одного IP за TokenWindow
	TokenWindow time.Duration
	// DisableTokenEndpoint убирает POST /api/v1/token
	DisableTokenEndpoint bool
}

// NewRouter собирает маршруты relay. Возвращает функцию остановки фоновых горутин.
func NewRouter(cfg RouterConfig) (http.Handler, func()) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{"/api/v1/health"}))

	health := NewHealthHandler(logger, cfg.Version, cfg.Hub)
	r.HandleFunc("/api/v1/health", health.Health).Methods(http.MethodGet)

	stop := func() {}
	if !cfg.DisableTokenEndpoint {
		rate, window := cfg.TokenRate, cfg.TokenWindow
		if rate <= 0 {
			rate = 10
		}
		if window <= 0 {
			window = time.Minute
		}
		limiter := middleware.NewRateLimiter(rate, window, logger)
		stop = limiter.Stop

		tokens := NewTokenHandler(logger, cfg.Tokens)
		r.Handle("/api/v1/token", limiter.Middleware(http.HandlerFunc(tokens.Issue))).Methods(http.MethodPost)
	}

	authed := middleware.AuthMiddleware(logger, cfg.Tokens)

	scenes := NewSceneHandler(logger, cfg.Hub)
	r.Handle("/api/v1/scenes/{sceneID}/state", authed(http.HandlerFunc(scenes.State))).Methods(http.MethodGet)

	ws := NewWSHandler(logger, cfg.Hub)
	r.Handle("/ws", authed(http.HandlerFunc(ws.Serve))).Methods(http.MethodGet)

	return r, stop
}
