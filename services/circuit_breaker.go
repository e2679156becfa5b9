package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"market-dashboard/observability"
)

// Circuit breaker names for external services
const (
	BreakerMarketstack  = "marketstack"
	BreakerAlphaVantage = "alphavantage"
	BreakerNewsAPI      = "newsapi"
	BreakerWebhook      = "webhook"
)

// WebhookBreakerName returns the breaker guarding one analysis workflow.
// Each workflow trips independently.
func WebhookBreakerName(workflow string) string {
	return BreakerWebhook + ":" + workflow
}

// CircuitBreakerConfig tunes the breaker guarding one upstream
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes let through while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // time spent open before probing again
	MinRequests  uint32        // requests in the window before the ratio is considered
	FailureRatio float64       // share of outages that opens the breaker
}

// DefaultCircuitBreakerConfig applies to the quote and news providers
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     1 * time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// WebhookCircuitBreakerConfig applies to the analysis workflows, which are
// slow and triggered by hand, so a few outages are enough to back off.
var WebhookCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  1,
	Interval:     5 * time.Minute,
	Timeout:      1 * time.Minute,
	MinRequests:  3,
	FailureRatio: 0.5,
}

func (c CircuitBreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// CircuitBreakerRegistry lazily creates one breaker per upstream name
type CircuitBreakerRegistry struct {
	mu        sync.Mutex
	defaults  CircuitBreakerConfig
	overrides map[string]CircuitBreakerConfig
	breakers  map[string]*gobreaker.CircuitBreaker[any]
}

// NewCircuitBreakerRegistry creates a registry using defaults for every
// upstream except the webhooks, which get WebhookCircuitBreakerConfig.
// Settings configured for BreakerWebhook also apply to every WebhookBreakerName
// without its own override.
func NewCircuitBreakerRegistry(defaults CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		defaults:  defaults,
		overrides: map[string]CircuitBreakerConfig{BreakerWebhook: WebhookCircuitBreakerConfig},
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Configure overrides the settings for name. An existing breaker is replaced
// and starts closed.
func (r *CircuitBreakerRegistry) Configure(name string, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg
	delete(r.breakers, name)
}

// Config returns the settings used for name
func (r *CircuitBreakerRegistry) Config(name string) CircuitBreakerConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configLocked(name)
}

func (r *CircuitBreakerRegistry) configLocked(name string) CircuitBreakerConfig {
	if cfg, ok := r.overrides[name]; ok {
		return cfg
	}
	if strings.HasPrefix(name, BreakerWebhook+":") {
		if cfg, ok := r.overrides[BreakerWebhook]; ok {
			return cfg
		}
	}
	return r.defaults
}

func (r *CircuitBreakerRegistry) breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.configLocked(name)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.readyToTrip,
		IsSuccessful:  countsAsSuccess,
		OnStateChange: onStateChange,
	})
	r.breakers[name] = cb
	return cb
}

func onStateChange(name string, from, to gobreaker.State) {
	observability.WithProvider(name).Warn("circuit breaker state change",
		"from", from.String(),
		"to", to.String())

	metrics := observability.GetMetrics()
	metrics.SetCircuitBreakerState(name, stateGauge(to))
	if to == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(name)
	}
}

// State reports the current state of the named breaker
func (r *CircuitBreakerRegistry) State(name string) gobreaker.State {
	return r.breaker(name).State()
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Status returns the breakers created so far keyed by upstream name
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			State:               cb.State().String(),
			Requests:            counts.Requests,
			Failures:            counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}
	return status
}

// Open lists the upstreams whose breaker is currently open, sorted by name
func (r *CircuitBreakerRegistry) Open() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []string
	for name, cb := range r.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	globalMu       sync.Mutex
	globalRegistry *CircuitBreakerRegistry
)

// GetGlobalRegistry returns the process-wide registry used by clients built
// without WithCircuitBreakers
func GetGlobalRegistry() *CircuitBreakerRegistry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRegistry = r
}

// Guard runs fn through the named breaker. A nil registry uses the global one.
// Rejections by an open or saturated breaker wrap the gobreaker error so
// KindOf reports KindUnavailable.
func Guard[T any](ctx context.Context, registry *CircuitBreakerRegistry, name string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if registry == nil {
		registry = GetGlobalRegistry()
	}

	cb := registry.breaker(name)
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.WithProvider(name).Warn("circuit breaker rejected request",
			"state", cb.State().String())
		return zero, fmt.Errorf("service %s unavailable: %w", name, err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}

// countsAsSuccess keeps caller mistakes and cancellations from tripping a breaker.
// Only outages (transport, 5xx, rate limiting) count as failures.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch KindOf(err) {
	case KindAuth, KindValidation, KindClient, KindPayload:
		return true
	default:
		return false
	}
}

// stateGauge maps a breaker state to the gauge value: 0 closed, 1 half-open, 2 open
func stateGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
