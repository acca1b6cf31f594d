package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockscan_runs_total",
		Help: "Finished pipeline runs by trigger and final status",
	}, []string{"trigger", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockscan_run_duration_seconds",
		Help:    "Wall time of pipeline runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"trigger", "status"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockscan_stage_duration_seconds",
		Help:    "Wall time of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 15),
	}, []string{"stage", "status"})

	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stockscan_quota_remaining_calls",
		Help: "Remaining data API calls reported by the last quota check",
	})

	triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockscan_triggers_total",
		Help: "Fired triggers by kind",
	}, []string{"kind"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockscan_http_requests_total",
		Help: "HTTP API requests by method and status",
	}, []string{"method", "status"})
)

// ObserveRun учитывает завершённый run.
func ObserveRun(trigger, status string, d time.Duration) {
	runsTotal.WithLabelValues(trigger, status).Inc()
	runDuration.WithLabelValues(trigger, status).Observe(d.Seconds())
}

// ObserveStage учитывает завершённую стадию.
func ObserveStage(stage, status string, d time.Duration) {
	stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// SetQuotaRemaining публикует остаток квоты.
func SetQuotaRemaining(n int) {
	quotaRemaining.Set(float64(n))
}

// IncTrigger учитывает срабатывание trigger.
func IncTrigger(kind string) {
	triggersTotal.WithLabelValues(kind).Inc()
}

// IncHTTPRequest учитывает HTTP запрос к API.
func IncHTTPRequest(method, status string) {
	httpRequests.WithLabelValues(method, status).Inc()
}
