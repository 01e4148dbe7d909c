package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hangplan/hangout-server/internal/config"
	"github.com/hangplan/hangout-server/internal/database"
	"github.com/hangplan/hangout-server/internal/handler"
	"github.com/hangplan/hangout-server/internal/jobs"
	"github.com/hangplan/hangout-server/internal/middleware"
	"github.com/hangplan/hangout-server/internal/observability"
	"github.com/hangplan/hangout-server/internal/redis"
	"github.com/hangplan/hangout-server/internal/repository"
	"github.com/hangplan/hangout-server/internal/service"
	"github.com/hangplan/hangout-server/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	accountRepo := repository.NewAccountRepository(db.DB)
	guestRepo := repository.NewGuestRepository(db.DB)
	hangoutRepo := repository.NewHangoutRepository(db.DB)
	memberRepo := repository.NewMemberRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	rateRepo := repository.NewRateTrackerRepository(db.DB)
	abuseRepo := repository.NewAbuseRepository(db.DB)
	eventRepo := repository.NewEventLogRepository(db.DB)
	errorRepo := repository.NewErrorLogRepository(db.DB)

	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, sessionRepo, memberRepo, cfg.WSMaxHeapBytes)

	sessionService := service.NewSessionService(sessionRepo)
	signInLimiter := service.NewSignInLimiter(redisClient.Client)
	retentionService := service.NewRetentionService(db, guestRepo, sessionRepo)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionRepo)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(
		rateRepo, abuseRepo, cfg.GeneralRateLimit, cfg.ChatRateLimit, cfg.CookieSecure,
	)

	sessionHandler := handler.NewSessionHandler(
		sessionService, signInLimiter, accountRepo, guestRepo,
		sessionMiddleware.Handler, cfg.CookieSecure,
	)
	chatHandler := handler.NewChatHandler(hangoutRepo, memberRepo, hub)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	// The upgrade route skips the request timeout; connections outlive it.
	r.Get("/v1/hangouts/ws", gateway.HandleUpgrade)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(rateLimitMiddleware.Handler)

		r.Route("/v1/sessions", func(r chi.Router) {
			r.Mount("/", sessionHandler.Routes())
		})

		r.Route("/v1/hangouts/{hangoutID}", func(r chi.Router) {
			r.Use(sessionMiddleware.Handler)
			r.Post("/chat", chatHandler.PostMessage)
		})
	})

	stageJob := jobs.NewStageJob(hangoutRepo, eventRepo, errorRepo, hub)
	cleanupJob := jobs.NewCleanupJob(
		rateRepo, abuseRepo, sessionRepo, errorRepo,
		retentionService, hub, cfg.GeneralRateLimit, cfg.ChatRateLimit,
	)

	scheduler := jobs.NewTickerScheduler(config.JobRunTimeout)
	scheduler.Register("stage tick", config.StageTickInterval, stageJob.Tick)
	scheduler.Register("rate replenish", config.RateReplenishInterval, cleanupJob.ReplenishRateCounters)
	scheduler.Register("hourly cleanup", config.HourlyCleanupInterval, cleanupJob.Hourly)
	scheduler.Register("daily cleanup", config.DailyCleanupInterval, cleanupJob.Daily)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
