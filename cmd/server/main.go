// souproom - turtle-soup deduction room server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/soupnight/souproom/internal/api"
	"github.com/soupnight/souproom/internal/config"
	"github.com/soupnight/souproom/internal/host"
	"github.com/soupnight/souproom/internal/llm"
	"github.com/soupnight/souproom/internal/middleware"
	"github.com/soupnight/souproom/internal/soups"
	"github.com/soupnight/souproom/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	catalog := soups.NewCatalog()
	slog.Info("Riddle catalog loaded", "soups", catalog.Len())

	var completion llm.Client
	if cfg.LLM.APIKey == "" && cfg.IsDevelopment() {
		slog.Warn("LLM_API_KEY not set, using canned host answers")
		completion = llm.NewMockClient(
			llm.MockResponse{Content: "indeterminate. The host is running without a model provider."},
		)
	} else {
		completion = llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, llm.WithModel(cfg.LLM.Model))
		slog.Info("Completion client ready", "model", cfg.LLM.Model)
	}

	gameHost := host.New(repo, catalog, completion, cfg.LLM.Temperature, cfg.ProgressKeyword)
	handler := api.NewHandler(gameHost, catalog, repo)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.MethodNotAllowed(api.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.Health)
		handler.RegisterSoupRoutes(r)

		// Session reads are what polling clients hammer; keep them
		// behind the per-client limiter so the 429 cooldown contract
		// has a real producer.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			handler.RegisterSessionRoutes(r)
		})
	})

	// WebSocket watch endpoint (push alternative; polling stays the
	// fallback path).
	handler.RegisterWatchRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // long-lived watch connections
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartSweeper(ctx, repo, cfg.SessionTTL, 10*time.Minute)
	slog.Info("Session sweeper started", "session_ttl", cfg.SessionTTL)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
