// Package httpserver serves the optional status endpoints of a running
// export: /healthz, /progress and /metrics. Long runs are polled by
// dashboards and k8s probes; nothing here is on the pipeline's critical path.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bryanwahyu/iqexport/internal/application/export"
	"github.com/bryanwahyu/iqexport/internal/middleware"
)

// ProgressSource is implemented by the export service.
type ProgressSource interface {
	Progress() export.Progress
}

func NewStatusRouter(src ProgressSource, checkers map[string]middleware.HealthChecker, log *zap.Logger) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Logging(log))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	mux.Get("/healthz", middleware.HealthHandler(checkers))

	mux.Get("/progress", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(src.Progress())
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
