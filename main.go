package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-dashboard/config"
	"market-dashboard/internal/api"
	"market-dashboard/internal/app"
	"market-dashboard/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		observability.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLoggerWithLevel(cfg.IsProduction(), observability.ParseLevel(cfg.App.LogLevel))
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(ctx, cfg)
	if err != nil {
		observability.Fatal("failed to initialize dashboard", "error", err)
	}
	defer stack.Close()

	if err := stack.Controller.Start(ctx); err != nil {
		observability.Fatal("failed to start refresh schedule", "error", err)
	}

	handler := api.NewHandler(stack.Controller, cfg, stack.HealthChecks())
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		observability.Info("starting market dashboard",
			"addr", cfg.HTTP.Addr,
			"env", cfg.App.Env,
			"refresh_interval", cfg.RefreshInterval().String(),
			"history", cfg.HasDatabase(),
			"redis", cfg.HasRedis())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down...")

	stack.Controller.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("graceful shutdown failed", "error", err)
	}
	observability.Info("market dashboard stopped")
}
