package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"market-dashboard/analysis"
	"market-dashboard/config"
	"market-dashboard/internal/app"
	"market-dashboard/models"
	"market-dashboard/observability"
	"market-dashboard/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxSymbols caps the symbols accepted by a single quotes request
const maxSymbols = 25

var symbolPattern = regexp.MustCompile(`^\^?[A-Z0-9.=-]+$`)

// HealthCheck reports whether an optional dependency is reachable
type HealthCheck = func(ctx context.Context) error

// Handler handles HTTP API requests
type Handler struct {
	ctrl   *app.Controller
	cfg    *config.Config
	checks map[string]HealthCheck
	health *healthCache
	hub    *Hub
}

// NewHandler creates a new Handler. checks maps dependency names such as
// "database" or "redis" to their probes; missing entries report not_configured.
func NewHandler(ctrl *app.Controller, cfg *config.Config, checks map[string]HealthCheck) *Handler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &Handler{
		ctrl:   ctrl,
		cfg:    cfg,
		checks: checks,
		health: newHealthCache(DefaultHealthCacheTTL),
		hub:    NewHub(ctrl, observability.GetMetrics()),
	}
}

// Hub returns the WebSocket hub
func (h *Handler) Hub() *Hub {
	return h.hub
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	deps := map[string]string{}

	for _, name := range []string{"database", "redis"} {
		check, ok := h.checks[name]
		if !ok {
			deps[name] = "not_configured"
			continue
		}
		if err := h.health.check(r.Context(), name, check); err != nil {
			deps[name] = "disconnected"
			status = "degraded"
			continue
		}
		deps[name] = "connected"
	}

	providers := map[string]bool{
		"marketstack":  h.cfg.HasMarketstack(),
		"alphavantage": h.cfg.HasAlphaVantage(),
		"newsapi":      h.cfg.HasNewsAPI(),
	}

	breakers := services.GetGlobalRegistry()
	cbStatus := breakers.Status()
	if len(breakers.Open()) > 0 {
		status = "degraded"
	}

	h.jsonResponse(w, map[string]any{
		"status":           status,
		"data_source":      h.ctrl.Snapshot().DataSource,
		"services":         deps,
		"providers":        providers,
		"circuit_breakers": cbStatus,
	})
}

// HandleGetDashboard returns the full dashboard state
func (h *Handler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.ctrl.Snapshot())
}

// HandleRefresh reloads quotes and news, then returns the new state
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Refresh(r.Context()); err != nil {
		observability.WithContext(r.Context()).Warn("manual refresh fell back to fixtures", "error", err)
	}
	h.jsonResponse(w, h.ctrl.Snapshot())
}

// HandleDismissErrors clears the dashboard error banners
func (h *Handler) HandleDismissErrors(w http.ResponseWriter, r *http.Request) {
	h.ctrl.DismissErrors()
	h.jsonResponse(w, StatusResponse{Status: "dismissed"})
}

// HandleGetQuotes returns one quote per symbol in the comma separated symbols parameter
func (h *Handler) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		h.jsonError(w, "symbols parameter is required", http.StatusBadRequest)
		return
	}

	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if err := h.ValidateSymbol(s); err != nil {
			h.jsonError(w, fmt.Sprintf("%s: %v", s, err), http.StatusBadRequest)
			return
		}
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		h.jsonError(w, "symbols parameter is required", http.StatusBadRequest)
		return
	}
	if len(symbols) > maxSymbols {
		h.jsonError(w, fmt.Sprintf("too many symbols (max %d)", maxSymbols), http.StatusBadRequest)
		return
	}

	h.jsonResponse(w, h.ctrl.Quotes(r.Context(), symbols))
}

// HandleGetQuote returns the quote for a single symbol
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol, err := url.PathUnescape(chi.URLParam(r, "symbol"))
	if err != nil {
		h.jsonError(w, "invalid symbol encoding", http.StatusBadRequest)
		return
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := h.ctrl.Quote(r.Context(), symbol)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	h.jsonResponse(w, quote)
}

// HandleClearQuoteCache drops every cached quote
func (h *Handler) HandleClearQuoteCache(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ClearQuoteCache(r.Context()); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, StatusResponse{Status: "cleared"})
}

// NewsResponse is the body of GET /api/news
type NewsResponse struct {
	Items  []models.NewsItem `json:"items"`
	Source string            `json:"source"`
}

// HandleGetNews returns the news currently shown on the dashboard
func (h *Handler) HandleGetNews(w http.ResponseWriter, r *http.Request) {
	s := h.ctrl.Snapshot()
	h.jsonResponse(w, NewsResponse{Items: s.News, Source: s.NewsSource})
}

// HandleAnalyzeMarket submits the dashboard dataset to the market workflow.
// The body is an optional AnalysisFilter.
func (h *Handler) HandleAnalyzeMarket(w http.ResponseWriter, r *http.Request) {
	var filter app.AnalysisFilter
	if err := decodeOptionalJSON(r, &filter); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	result, err := h.ctrl.AnalyzeMarket(r.Context(), filter)
	if err != nil {
		h.jsonError(w, h.analysisMessage(err, h.ctrl.Snapshot().Market.Error), statusFor(err))
		return
	}

	h.jsonResponse(w, result)
}

// HandleAnalyzeStock submits a single symbol to the stock workflow
func (h *Handler) HandleAnalyzeStock(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
			return
		}
	} else {
		_ = r.ParseForm()
		req.Symbol = r.FormValue("symbol")
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := h.ValidateSymbol(req.Symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pred, err := h.ctrl.AnalyzeStock(r.Context(), req.Symbol)
	if err != nil {
		h.jsonError(w, h.analysisMessage(err, h.ctrl.Snapshot().Stock.Error), statusFor(err))
		return
	}

	h.jsonResponse(w, StockAnalysisResponse{Symbol: req.Symbol, Prediction: pred})
}

// HandleGetAnalysisRuns returns persisted analysis history
func (h *Handler) HandleGetAnalysisRuns(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)

	kind := models.AnalysisKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", models.AnalysisKindMarket, models.AnalysisKindStock:
	default:
		h.jsonError(w, "kind must be market or stock", http.StatusBadRequest)
		return
	}

	runs, err := h.ctrl.AnalysisRuns(r.Context(), kind, limit)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}

	h.jsonResponse(w, runs)
}

// HandleGetAnalysisRun returns one persisted analysis run
func (h *Handler) HandleGetAnalysisRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "invalid run ID", http.StatusBadRequest)
		return
	}

	run, err := h.ctrl.AnalysisRun(r.Context(), id)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}

	h.jsonResponse(w, run)
}

// HandleTestProvider performs an uncached quote provider call and returns its raw answer
func (h *Handler) HandleTestProvider(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		symbol = "AAPL"
	}
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.ctrl.TestQuoteProvider(r.Context(), symbol)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}

	h.jsonResponse(w, result)
}

// Helper functions

// analysisMessage prefers the banner text the controller stored for the failure
func (h *Handler) analysisMessage(err error, banner *string) string {
	if errors.Is(err, app.ErrAnalysisInProgress) {
		return err.Error()
	}
	var filterErr *app.FilterError
	if errors.As(err, &filterErr) {
		return err.Error()
	}
	if banner != nil {
		return *banner
	}
	return err.Error()
}

// statusFor maps controller and upstream errors to HTTP status codes
func statusFor(err error) int {
	var filterErr *app.FilterError
	switch {
	case errors.Is(err, app.ErrInvalidSymbol), errors.As(err, &filterErr):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoQuote), errors.Is(err, app.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrAnalysisInProgress):
		return http.StatusConflict
	case errors.Is(err, app.ErrHistoryUnavailable), errors.Is(err, services.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, app.ErrNoPrediction),
		errors.Is(err, analysis.ErrUnrecognizedShape),
		errors.Is(err, analysis.ErrInvalidPayload):
		return http.StatusBadGateway
	}

	switch services.KindOf(err) {
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	case services.KindAuth, services.KindValidation, services.KindRateLimit,
		services.KindServer, services.KindClient, services.KindTransport, services.KindPayload:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeOptionalJSON decodes the body into v, treating an empty body as zero value
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ValidateSymbol validates a ticker or caret-prefixed index symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, dashes and a leading ^ only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StatusResponse represents a status response
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AnalyzeRequest represents a stock analysis request
type AnalyzeRequest struct {
	Symbol string `json:"symbol"`
}

// StockAnalysisResponse is the body returned by a successful stock analysis
type StockAnalysisResponse struct {
	Symbol     string             `json:"symbol"`
	Prediction *models.Prediction `json:"prediction"`
}
