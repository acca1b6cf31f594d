package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.DispatchRun)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/stages", chain(http.HandlerFunc(h.ListStages)))

	// Schedule
	mux.Handle("GET /api/v1/schedule", chain(http.HandlerFunc(h.GetSchedule)))

	RegisterHealth(mux, h.startedAt)
}

// RegisterHealth регистрирует /healthz и /metrics.
func RegisterHealth(mux *http.ServeMux, startedAt time.Time) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startedAt).Truncate(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}
