// Package main provides a standalone HTTP server for E2E testing.
// It serves the real routes and handlers with every upstream replaced by the
// in-process mock server, so browser tests run without network access or keys.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-dashboard/config"
	"market-dashboard/e2e/mocks"
	"market-dashboard/internal/api"
	"market-dashboard/internal/app"
	"market-dashboard/observability"
)

func main() {
	// Initialize logger in development mode for tests
	observability.InitLogger(false)
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	mock := mocks.NewMockServer()
	defer mock.Close()
	observability.Info("mock upstreams started", "url", mock.URL())

	cfg := config.NewTestConfig()
	cfg.Marketstack = config.MarketstackConfig{APIKey: "e2e", BaseURL: mock.MarketstackURL()}
	cfg.AlphaVantage = config.AlphaVantageConfig{APIKey: "e2e", BaseURL: mock.AlphaVantageURL()}
	cfg.NewsAPI = config.NewsAPIConfig{APIKey: "e2e", BaseURL: mock.NewsAPIURL()}
	cfg.Webhooks.MarketURL = mock.MarketWebhookURL()
	cfg.Webhooks.StockURL = mock.StockWebhookURL()
	cfg.Webhooks.TimeoutSeconds = 10

	// History is optional here
	cfg.Database.URL = os.Getenv("E2E_DATABASE_URL")

	ctx := context.Background()

	stack, err := app.Build(ctx, cfg)
	if err != nil {
		observability.Fatal("failed to build application", "error", err)
	}
	defer stack.Close()

	if err := stack.Controller.Start(ctx); err != nil {
		observability.Fatal("failed to start dashboard", "error", err)
	}

	handler := api.NewHandler(stack.Controller, cfg, stack.HealthChecks())
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting E2E test server", "port", port, "url", fmt.Sprintf("http://localhost:%s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stack.Controller.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	observability.Info("E2E test server stopped")
}
