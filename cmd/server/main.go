package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"timetrack/internal/api"
	"timetrack/internal/api/handler"
	"timetrack/internal/api/live"
	"timetrack/internal/app/service"
	"timetrack/internal/app/worker"
	"timetrack/internal/common/security"
	"timetrack/internal/domain/repository"
	"timetrack/internal/platform/cache"
	"timetrack/internal/platform/config"
	"timetrack/internal/platform/database"
	"timetrack/internal/platform/events"
	"timetrack/internal/platform/logger"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.AppEnv).Str("store", cfg.StoreDriver).Str("sessions", cfg.SessionDriver).Msg("configuration loaded")

	// 2. Initialize JWT
	security.InitJWT()
	clock := clockwork.NewRealClock()

	// 3. Initialize stores
	var (
		userRepo  repository.UserRepository
		timerRepo repository.TimerRepository
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		database.Connect()
		defer database.Close()
		userRepo = repository.NewPgUserRepository(database.DB)
		timerRepo = repository.NewPgTimerRepository(database.DB)
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		userRepo = repository.NewMemoryUserRepository()
		timerRepo = repository.NewMemoryTimerRepository()
	default:
		database.ConnectMongo()
		defer database.CloseMongo()
		userRepo = repository.NewMongoUserRepository(database.MongoDB)
		timerRepo = repository.NewMongoTimerRepository(database.MongoDB)
	}

	// 4. Initialize sessions
	var sessionRepo repository.SessionRepository
	if cfg.SessionDriver == config.SessionMemory {
		sessionRepo = repository.NewMemorySessionRepository(clock)
	} else {
		cache.ConnectRedis()
		defer cache.CloseRedis()
		sessionRepo = repository.NewRedisSessionRepository(cache.RDB)
	}

	// 5. Timer events
	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		p, err := events.ConnectNATS(cfg.NATSURL, cfg.EventsSubjectPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to NATS")
		}
		publisher = p
	}
	defer publisher.Close()

	// 6. Initialize Services
	authService := service.NewAuthService(userRepo, sessionRepo, security.TokenAuth, cfg.SessionMaxAge, clock)
	timerService := service.NewTimerService(timerRepo, publisher, clock)

	// 7. Live hub and broadcast worker
	hub := live.NewHub(live.DefaultConfig())
	broadcastWorker := worker.NewBroadcastWorker(timerService, hub, clock, cfg.BroadcastInterval, cfg.BroadcastScope)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go broadcastWorker.Start(workerCtx)

	// 8. Initialize Router & HTTP Server
	cookies := handler.NewSessionCookies(
		security.NewCookieCodec(cfg.SessionSecret, cfg.SessionMaxAge),
		cfg.SessionMaxAge,
		cfg.CookieSecure,
	)
	router := api.NewRouter(api.RouterConfig{CORSOrigin: cfg.CORSOrigin}, authService, timerService, cookies, hub)

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: it would cut long-lived websocket connections
		IdleTimeout: 120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.APIPort).Msg("could not listen")
		}
	}()

	<-stop // Wait for interrupt signal

	log.Info().Msg("shutting down server")
	workerCancel()
	hub.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server and worker stopped gracefully")
}
