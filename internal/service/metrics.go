package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Метрики алертов
	alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_alerts_fired_total",
		Help: "Total number of alerts fired",
	}, []string{"severity", "rule_type"})

	alertsRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerting_alerts_refreshed_total",
		Help: "Total number of open alerts refreshed by a continuing condition",
	})

	alertsAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerting_alerts_acknowledged_total",
		Help: "Total number of alerts acknowledged",
	})

	alertsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_alerts_resolved_total",
		Help: "Total number of alerts resolved",
	}, []string{"mode"}) // manual / stale

	activeAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alerting_active_alerts",
		Help: "Number of currently open alerts",
	}, []string{"severity"})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alerting_evaluation_pass_duration_seconds",
		Help:    "Duration of a full rule evaluation pass",
		Buckets: prometheus.DefBuckets,
	})

	ruleEvaluationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerting_rule_evaluation_errors_total",
		Help: "Total number of per-rule evaluation errors",
	})

	// Метрики доставки
	dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_dispatches_total",
		Help: "Total number of channel dispatch attempts",
	}, []string{"channel_type", "status"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alerting_dispatch_duration_seconds",
		Help:    "Duration of channel dispatch attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel_type"})

	notificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_notifications_suppressed_total",
		Help: "Total number of notifications suppressed before dispatch",
	}, []string{"reason"}) // mute / cooldown

	// Метрики кэша каналов
	channelCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerting_channel_cache_hits_total",
		Help: "Total number of channel cache hits",
	})

	channelCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerting_channel_cache_misses_total",
		Help: "Total number of channel cache misses",
	})

	// Метрики воркеров
	workerLastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alerting_worker_last_run_timestamp",
		Help: "Unix timestamp of last worker run",
	}, []string{"worker"})

	workerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_worker_runs_total",
		Help: "Total number of worker runs",
	}, []string{"worker"})

	workerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_worker_errors_total",
		Help: "Total number of worker errors",
	}, []string{"worker"})

	// Метрики HTTP
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alerting_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerting_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})
)

// RecordWorkerRun записывает выполнение воркера
func RecordWorkerRun(workerName string) {
	workerLastRun.WithLabelValues(workerName).SetToCurrentTime()
	workerRunsTotal.WithLabelValues(workerName).Inc()
}

// RecordWorkerError записывает ошибку воркера
func RecordWorkerError(workerName string) {
	workerErrors.WithLabelValues(workerName).Inc()
}

// RecordHTTPRequest записывает HTTP запрос
func RecordHTTPRequest(method, endpoint string, duration float64, statusCode int) {
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	status := "success"
	if statusCode >= 400 {
		status = "error"
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
