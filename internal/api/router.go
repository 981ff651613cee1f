package api

import (
	"net/http"
	"time"
	"timetrack/internal/api/handler"
	"timetrack/internal/api/live"
	"timetrack/internal/api/middleware"
	"timetrack/internal/app/service"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

type RouterConfig struct {
	CORSOrigin     string
	RequestTimeout time.Duration
}

func NewRouter(
	cfg RouterConfig,
	authService *service.AuthService,
	timerService *service.TimerService,
	cookies *handler.SessionCookies,
	hub *live.Hub,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler)

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Index page and live channel; no timeout, sockets are long-lived
	liveHandler := handler.NewLiveHandler(authService, cookies, hub)
	liveHandler.RegisterRoutes(r)

	r.Group(func(rest chi.Router) {
		rest.Use(chiMiddleware.Timeout(cfg.RequestTimeout))

		authHandler := handler.NewAuthHandler(authService, cookies)
		authHandler.RegisterRoutes(rest)

		timerHandler := handler.NewTimerHandler(timerService)
		rest.Route("/timer", func(tr chi.Router) {
			tr.Use(middleware.Authenticator(authService))
			timerHandler.RegisterRoutes(tr)
		})
	})

	return r
}
