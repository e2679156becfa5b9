package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// testServer starts an httptest server and returns options pointing a client at it
// with an isolated breaker registry.
func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, []Option) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, []Option{
		WithBaseURL(server.URL),
		WithCircuitBreakers(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)),
	}
}
