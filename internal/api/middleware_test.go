package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code to be 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusTeapot)
	if rw.statusCode != http.StatusTeapot {
		t.Errorf("Expected status code to be 418, got %d", rw.statusCode)
	}

	data := []byte(`{"status":"ok"}`)
	for i := 0; i < 2; i++ {
		n, err := rw.Write(data)
		if err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
		if n != len(data) {
			t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
		}
	}
	if rw.responseSize != 2*len(data) {
		t.Errorf("Expected cumulative response size %d, got %d", 2*len(data), rw.responseSize)
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Expected error hijacking a recorder")
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.Flush()
	if !rec.Flushed {
		t.Error("Expected flush to reach the underlying writer")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"routed GET", http.MethodGet, "/api/quotes/AAPL", http.StatusOK},
		{"server error", http.MethodGet, "/api/quotes/FAIL", http.StatusInternalServerError},
		{"POST", http.MethodPost, "/api/analysis/stock", http.StatusCreated},
	}

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/quotes/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "symbol") == "FAIL" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	})
	r.Post("/api/analysis/stock", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestMetricsMiddleware_WithoutRouter(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodGet, "/unrouted", nil)
	w := httptest.NewRecorder()

	MetricsMiddleware(handler).ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream"}`))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/analysis/market", nil)
	w := httptest.NewRecorder()

	RequestLogger(handler).ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
	if w.Body.String() != `{"error":"upstream"}` {
		t.Errorf("Expected body to pass through, got %s", w.Body.String())
	}
}
