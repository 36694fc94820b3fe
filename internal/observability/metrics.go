package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	exchangeRecordedCounter *prometheus.CounterVec
	confirmConflictCounter  prometheus.Counter
	notificationCounter     *prometheus.CounterVec
	balanceDriftCounter     prometheus.Counter
	idempotencyCounter      *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		exchangeRecordedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchanges_recorded_total",
			Help: "Exchanges recorded, by category",
		}, []string{"category"})

		confirmConflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_confirm_conflicts_total",
			Help: "Confirm attempts that lost to an earlier confirmation",
		})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification fan-out outcomes",
		}, []string{"outcome"})

		balanceDriftCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_balance_drift_total",
			Help: "Accounts whose balance diverged from the ledger-derived sum",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			exchangeRecordedCounter,
			confirmConflictCounter,
			notificationCounter,
			balanceDriftCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementExchangeRecorded(category string) {
	if exchangeRecordedCounter == nil {
		return
	}
	exchangeRecordedCounter.WithLabelValues(category).Inc()
}

func IncrementConfirmConflict() {
	if confirmConflictCounter == nil {
		return
	}
	confirmConflictCounter.Inc()
}

// Notification outcomes: persisted, pushed, push_dropped, persist_failed.
func IncrementNotification(outcome string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(outcome).Inc()
}

func IncrementBalanceDrift() {
	if balanceDriftCounter == nil {
		return
	}
	balanceDriftCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
