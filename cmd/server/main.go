package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChaseRain/pdf2deck/internal/api"
	"github.com/ChaseRain/pdf2deck/internal/app"
	"github.com/ChaseRain/pdf2deck/internal/infra/config"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Init logger
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.Gemini.APIKey == "" {
		zapLogger.Warn("GEMINI_API_KEY is not set, generation requests will fail")
	}

	// Init services
	application, err := app.New(context.Background(), cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to init services", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// Init router
	router := api.NewRouter(application.Orchestrator, application.Reader, application.Storage, zapLogger)

	// Generation has no deadline, so the write timeout defaults to none.
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	// Start server
	go func() {
		zapLogger.Info("starting server",
			"addr", cfg.Server.Addr,
			"primary_model", cfg.Gemini.PrimaryModel,
			"fallback_model", cfg.Gemini.FallbackModel,
			"storage", cfg.Storage.Type,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server forced to shutdown", "error", err)
	}
	zapLogger.Info("server stopped")
}
