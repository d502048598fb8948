// Package main is the entry point for the draftwise-api server.
// User management, sessions, and billing live in the writing app's
// backend; this service only verifies the JWTs it issues.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/draftwise/draftwise-api/internal/auth"
	"github.com/draftwise/draftwise-api/internal/cache"
	"github.com/draftwise/draftwise-api/internal/config"
	"github.com/draftwise/draftwise-api/internal/database"
	"github.com/draftwise/draftwise-api/internal/http/handlers"
	"github.com/draftwise/draftwise-api/internal/http/mw"
	"github.com/draftwise/draftwise-api/internal/llm"
	"github.com/draftwise/draftwise-api/internal/logging"
	"github.com/draftwise/draftwise-api/internal/repository"
	"github.com/draftwise/draftwise-api/internal/service"
	"github.com/draftwise/draftwise-api/internal/version"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting draftwise-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	// Identity plumbing: one secret both verifies tokens and seeds the
	// user-hash key, so hashes stay stable across restarts.
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	hasher, err := auth.NewUserHasher([]byte(cfg.JWTSecret))
	if err != nil {
		logger.Error("failed to derive user hash key", "error", err)
		os.Exit(1)
	}

	// Runtime limits overrides from object storage, when configured.
	s3Client, err := config.NewS3Client(cfg)
	if err != nil {
		logger.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}
	limits := config.NewLimitsLoader(cfg.BaseLimits(), s3Client, cfg.StorageBucket, cfg.LimitsOverrideKey, logger)
	if s3Client != nil {
		logger.Info("limits override loader enabled",
			"bucket", cfg.StorageBucket,
			"key", cfg.LimitsOverrideKey,
		)
	}

	analysisSvc := service.NewAnalysisService(
		cfg,
		limits,
		logger,
		repos,
		cache.NewLRU(cfg.LRUMaxEntries),
		hasher,
		llm.NewClient(logger, nil),
	)

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.SweepEnabled {
		sweeper := service.NewMaintenanceService(logger, repos, cfg.SweepInterval, cfg.SweepIdleWindowAge)
		go sweeper.Run(ctx)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.LogContext())
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	// Analysis endpoints wait on a model call; everything else is quick.
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:          15 * time.Second,
		Extended:         cfg.OverallTimeout + 5*time.Second,
		ExtendedPatterns: []string{"/analyze"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit well above the largest analyzable text.
	router.Use(middleware.RequestSize(256 * 1024))

	// IP-level rate limit in front of the per-user quota window.
	router.Use(httprate.LimitByIP(300, time.Minute))

	humaConfig := huma.DefaultConfig("Draftwise API", v.Version)
	humaConfig.Info.Description = "AI analysis gateway for the Draftwise writing assistant: grammar, style, and readability suggestions with caching and admission control."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "JWT issued by the Draftwise backend.",
		},
	}

	api := humachi.New(router, humaConfig)

	// Kubernetes probes get a docs-free config.
	hiddenConfig := huma.DefaultConfig("Draftwise API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(api, "/api/v1/version", handlers.GetVersion)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(db).Readyz)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(verifier))

		protectedConfig := huma.DefaultConfig("Draftwise API", v.Version)
		protectedConfig.DocsPath = ""
		protectedConfig.OpenAPIPath = ""
		protectedConfig.SchemasPath = ""
		protectedAPI := humachi.New(r, protectedConfig)

		analyzeHandler := handlers.NewAnalyzeHandler(analysisSvc)
		huma.Post(protectedAPI, "/api/v1/analyze", analyzeHandler.Analyze)
		huma.Post(protectedAPI, "/api/v1/analyze/realtime", analyzeHandler.AnalyzeRealtime)

		usageHandler := handlers.NewUsageHandler(analysisSvc)
		huma.Get(protectedAPI, "/api/v1/usage", usageHandler.GetUsage)
		huma.Get(protectedAPI, "/api/v1/reports", usageHandler.ListReports)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OverallTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "provider", cfg.LLMProvider)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
