package routes

import (
	"net/http"

	"github.com/zatekoja/facility-import/backend/internal/api/handlers"
	"github.com/zatekoja/facility-import/backend/internal/api/middleware"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux           *http.ServeMux
	importHandler *handlers.ImportHandler
	metrics       *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(importHandler *handlers.ImportHandler, metrics *observability.Metrics) *Router {
	return &Router{
		mux:           http.NewServeMux(),
		importHandler: importHandler,
		metrics:       metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Import pipeline
	r.mux.HandleFunc("POST /api/admin/import", r.importHandler.ImportAll)
	r.mux.HandleFunc("POST /api/admin/import/kind/{kind}", r.importHandler.ImportByKind)
	r.mux.HandleFunc("POST /api/admin/import/region", r.importHandler.ImportByRegion)
	r.mux.HandleFunc("POST /api/admin/dedup", r.importHandler.Deduplicate)
	r.mux.HandleFunc("GET /api/admin/summary", r.importHandler.GetSummary)
	r.mux.HandleFunc("DELETE /api/admin/facilities/imported", r.importHandler.ClearImported)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	return handler
}
