package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/focus-server/internal/config"
	"github.com/studyhall/focus-server/internal/database"
	"github.com/studyhall/focus-server/internal/events"
	"github.com/studyhall/focus-server/internal/handler"
	"github.com/studyhall/focus-server/internal/jobs"
	"github.com/studyhall/focus-server/internal/lock"
	"github.com/studyhall/focus-server/internal/middleware"
	"github.com/studyhall/focus-server/internal/redis"
	"github.com/studyhall/focus-server/internal/repository"
	"github.com/studyhall/focus-server/internal/room"
	"github.com/studyhall/focus-server/internal/service"
	"github.com/studyhall/focus-server/internal/sse"
	"github.com/studyhall/focus-server/internal/window"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
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

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	sessionRepo := repository.NewFocusSessionRepository(db.DB)
	participantRepo := repository.NewParticipantRepository(db.DB)

	var locker lock.UserLocker
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		locker = lock.NewRedisLocker(redisClient.Client, config.RedisLockTTL, config.RedisLockRetryDelay)
	case config.LockBackendMemory:
		log.Warn().Msg("using in-memory claim lock: run a single instance only")
		locker = lock.NewMemoryLocker()
	default:
		locker = lock.NewAdvisoryLocker()
	}

	var publishers events.Fanout
	var broker *sse.Broker
	if redisClient != nil {
		broker = sse.NewBroker(redisClient)
		defer broker.Close()
		publishers = append(publishers, broker)
	}
	if cfg.AMQPURL != "" {
		amqpPublisher := events.NewAMQPPublisher(cfg.AMQPURL, "")
		defer amqpPublisher.Close()
		publishers = append(publishers, amqpPublisher)
	}

	var publisher events.Publisher = events.Nop
	if len(publishers) > 0 {
		publisher = publishers
	}

	rooms := room.NewClient(room.Config{
		BaseURL:     cfg.RoomProviderURL,
		APIKey:      cfg.RoomProviderAPIKey,
		TokenSecret: cfg.RoomTokenSecret,
		TokenTTL:    cfg.RoomTokenTTL(),
		Timeout:     config.RoomProviderTimeout,
	})

	policy := window.Policy{Grace: cfg.JoinGraceEnabled}

	seatService := service.NewSeatClaimService(db, sessionRepo, participantRepo, locker, publisher)
	bookingService := service.NewBookingService(
		sessionRepo, participantRepo, seatService, rooms, publisher, policy, cfg.MaxListSpan(),
	)
	reservationService := service.NewReservationService(sessionRepo, seatService)
	joinService := service.NewJoinService(sessionRepo, participantRepo, rooms, policy)

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient.Client)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	sessionHandler := handler.NewSessionHandler(bookingService, reservationService, joinService)
	if broker != nil {
		sessionHandler.WithEvents(handler.NewEventsHandler(broker, bookingService))
	}
	healthHandler := handler.NewHealthHandler(db)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Use(bodyLimitMiddleware.Handler)
		r.Mount("/", sessionHandler.Routes())
	})

	sweepJob := jobs.NewStatusSweepJob(sessionRepo, config.StatusSweepInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("lockBackend", cfg.LockBackend).Msg("starting server")
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
