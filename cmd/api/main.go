package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/cache"
	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/database"
	"github.com/GTDGit/passport_api/internal/handler"
	"github.com/GTDGit/passport_api/internal/llm"
	"github.com/GTDGit/passport_api/internal/metrics"
	"github.com/GTDGit/passport_api/internal/middleware"
	"github.com/GTDGit/passport_api/internal/repository"
	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/sse"
	"github.com/GTDGit/passport_api/internal/worker"
)

// main is the application entrypoint for the passport intake API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("storage", cfg.Storage.Driver).Str("snapshots", cfg.Snapshot.Backend).Msg("starting passport api")

	// 3. Context for startup and graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handler.HealthCheck{}

	// 4. Record store
	var store service.PassportStore
	switch cfg.Storage.Driver {
	case "postgres":
		db := mustConnectDB(ctx, cfg)
		defer db.Close()
		store = repository.NewPassportRepository(db)
		checks["database"] = db.PingContext
	default:
		log.Warn().Msg("using in-memory record store, records are lost on restart")
		store = repository.NewMemoryPassportRepository()
	}

	// 5. Snapshot store
	var snapshots service.SnapshotStore
	switch cfg.Snapshot.Backend {
	case "redis":
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			fatal("redis connection failed", err)
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected successfully")
		snapshots = cache.NewRedisSnapshotStore(redisClient)
		checks["redis"] = redisClient.Ping
	default:
		fileStore, err := cache.NewFileSnapshotStore(cfg.Snapshot.Dir)
		if err != nil {
			fatal("snapshot directory unavailable", err)
		}
		snapshots = fileStore
	}

	// 6. Templates
	registry, err := service.LoadTemplateRegistry(cfg.Templates.ManifestPath)
	if err != nil {
		fatal("template registry failed to load", err)
	}

	// 7. Optional upload archive
	var archiver service.Archiver
	if cfg.S3.Bucket != "" {
		s3Svc, err := service.NewS3Service(ctx, &cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("S3 service initialization failed - upload archiving will be disabled")
		} else {
			archiver = s3Svc
			log.Info().Str("bucket", cfg.S3.Bucket).Msg("upload archiving enabled")
		}
	}

	// 8. Initialize services
	m := metrics.New()
	llmClient := llm.NewClient(&cfg.LLM)
	extractionSvc := service.NewExtractionService(llmClient, &cfg.LLM, m)
	translationSvc := service.NewTranslationService(llmClient, &cfg.Translation, m)
	templateSvc := service.NewTemplateService(registry, translationSvc, m)
	passportSvc := service.NewPassportService(store, snapshots, extractionSvc, translationSvc, templateSvc, archiver, m, cfg.Upload.MaxBytes)
	authSvc := service.NewAuthService(&cfg.Auth)

	hub := sse.NewHub()
	passportSvc.SetNotifier(sse.NewHubNotifier(hub))

	// 9. Initialize handlers and middleware
	limiter := middleware.NewFailedAttemptLimiter()
	go limiter.Run(ctx, 5*time.Minute)

	handlers := &Handlers{
		Health:   handler.NewHealthHandler(checks),
		Passport: handler.NewPassportHandler(passportSvc, cfg.Upload.MaxBytes),
		Template: handler.NewTemplateHandler(templateSvc, passportSvc),
		Auth:     handler.NewAuthHandler(authSvc, limiter),
	}

	var jwtMw *middleware.JWTMiddleware
	if cfg.AuthEnabled() {
		jwtMw = middleware.NewJWTMiddleware(authSvc, limiter)
		handlers.Events = handler.NewSSEHandler(hub, authSvc)
	} else {
		handlers.Events = handler.NewSSEHandler(hub, nil)
		log.Warn().Msg("JWT_SECRET not set, record edits and deletes are unauthenticated")
	}

	// 10. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.Upload.MaxBytes
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 11. Start workers
	if cfg.Worker.TranslationBackfillInterval > 0 {
		go worker.NewTranslationBackfillWorker(passportSvc, cfg.Worker.TranslationBackfillInterval, cfg.Worker.TranslationBackfillBatch).Start(ctx)
	}

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers and end event streams
	cancel()
	hub.Close()

	// 15. Shutdown HTTP server with timeout, then drain background translations
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	passportSvc.Wait()
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health   *handler.HealthHandler
	Passport *handler.PassportHandler
	Template *handler.TemplateHandler
	Auth     *handler.AuthHandler
	Events   *handler.SSEHandler
}

// setupRoutes registers all routes. jwtMiddleware is nil when auth is disabled.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := []gin.HandlerFunc{}
	if jwtMiddleware != nil {
		protected = append(protected, jwtMiddleware.Handle())
	}

	api := router.Group("/api")
	{
		api.POST("/auth/login", handlers.Auth.Login)
		api.POST("/process", handlers.Passport.Process)

		api.GET("/passports", handlers.Passport.List)
		api.GET("/passports/:id", handlers.Passport.Get)
		api.GET("/passports/:id/translation", handlers.Passport.Translation)
		api.PUT("/passports/:id", append(protected, handlers.Passport.Update)...)
		api.DELETE("/passports/:id", append(protected, handlers.Passport.Delete)...)

		api.GET("/templates", handlers.Template.List)
		api.POST("/templates/:id/fill", handlers.Template.Fill)

		api.GET("/events", handlers.Events.Stream)
	}
}

func mustConnectDB(ctx context.Context, cfg *config.Config) *sqlx.DB {
	db, err := database.Connect(ctx, &cfg.DB)
	if err != nil {
		fatal("database connection failed", err)
	}
	if err := database.Migrate(db.DB, cfg.DB.MigrationsDir); err != nil {
		fatal("migration failed", err)
	}
	log.Info().Msg("migrations completed successfully")
	return db
}

func fatal(msg string, err error) {
	log.Error().Err(err).Msg(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
