package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
	"github.com/pixia1234/super-clipboard/pkg/superclip/api"
	"github.com/pixia1234/super-clipboard/pkg/superclip/config"
)

func main() {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(cfg.BuildLogger())

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL); err != nil {
			slog.Error("Failed to reach postgres", "error", err)
			os.Exit(1)
		}
	}

	svc, err := cfg.BuildService()
	if err != nil {
		slog.Error("Failed to build service", "error", err)
		os.Exit(1)
	}

	// Start sweeps leftovers from the previous run before the server
	// accepts traffic.
	reaper := superclip.NewReaper(svc, cfg.CleanupInterval(), slog.Default())
	reaper.Start(context.Background())

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: routes(svc, cfg),
	}

	go func() {
		slog.Info("Super clipboard server starting",
			"addr", cfg.Addr(),
			"database", cfg.DatabaseType,
			"storage", cfg.StorageBackend,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	reaper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}

func routes(svc superclip.Service, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(api.CORSMiddleware(cfg.AllowedOrigins, nil, nil))
	r.Use(api.RequestSizeLimitMiddleware(cfg.RequestBodyLimit()))

	clipsHandler := api.NewClipsHandler(svc)
	tokensHandler := api.NewTokensHandler(svc)
	resolveHandler := api.NewResolveHandler(svc, cfg.StaticRoot)

	r.Mount("/api/clips", clipsHandler.Routes())
	r.Mount("/api/tokens", tokensHandler.Routes())

	mountStatic(r, cfg.StaticRoot)
	resolveHandler.RegisterRoutes(r)

	return r
}

// mountStatic serves a frontend bundle when one is deployed next to
// the server.
func mountStatic(r chi.Router, staticRoot string) {
	if staticRoot == "" {
		return
	}
	if info, err := os.Stat(staticRoot); err != nil || !info.IsDir() {
		return
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticRoot))))

	assetsDir := filepath.Join(staticRoot, "assets")
	if info, err := os.Stat(assetsDir); err == nil && info.IsDir() {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(assetsDir))))
	}
}
