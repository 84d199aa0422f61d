package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggingMiddleware_PassesStatusThrough(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/import", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestObservabilityMiddleware_NilMetrics(t *testing.T) {
	mux := http.NewServeMux()
	var pattern string
	mux.HandleFunc("GET /api/admin/summary", func(w http.ResponseWriter, r *http.Request) {
		pattern = r.Pattern
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	ObservabilityMiddleware(nil)(mux).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/summary", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET /api/admin/summary", pattern)
}
