package api

import (
	"net/http"
	"time"

	"market-dashboard/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestSlack is added to the webhook timeout so the workflow call fails before the request does
const requestSlack = 15 * time.Second

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Long-lived; kept outside the request timeout
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.WebhookTimeout() + requestSlack))

			// Health check
			r.Get("/health", h.HandleHealth)

			// Dashboard state
			r.Get("/dashboard", h.HandleGetDashboard)
			r.Post("/dashboard/refresh", h.HandleRefresh)
			r.Delete("/dashboard/errors", h.HandleDismissErrors)

			// Quotes
			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", h.HandleGetQuotes)
				r.Delete("/cache", h.HandleClearQuoteCache)
				r.Get("/{symbol}", h.HandleGetQuote)
			})

			// News
			r.Get("/news", h.HandleGetNews)

			// Analysis
			r.Route("/analysis", func(r chi.Router) {
				r.Post("/market", h.HandleAnalyzeMarket)
				r.Post("/stock", h.HandleAnalyzeStock)
				r.Get("/runs", h.HandleGetAnalysisRuns)
				r.Get("/runs/{id}", h.HandleGetAnalysisRun)
			})

			// Raw provider check
			r.Get("/provider/test", h.HandleTestProvider)
		})
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
