package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Embedding pipeline metrics
	JobsProcessed *prometheus.CounterVec
	JobDuration   prometheus.Histogram
	WorkersBusy   prometheus.Gauge

	// Queue health metrics, refreshed by the monitor service
	QueueDepth       *prometheus.GaugeVec
	OldestPendingAge prometheus.Gauge

	// Maintenance metrics
	MemoriesCleaned *prometheus.CounterVec
	SessionsExpired prometheus.Counter
	StaleJobsReset  prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Job outcomes (counter - only goes up)
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_embedding_jobs_processed_total",
			Help: "Total number of embedding jobs processed by outcome",
		}, []string{"outcome"}), // outcome: "completed", "retried", "dead"

		// Time from claim to completion
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mnemo_embedding_job_duration_seconds",
			Help:    "Embedding job processing time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}, // provider calls dominate
		}),

		// Workers currently holding a claimed job
		WorkersBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mnemo_embedding_workers_busy",
			Help: "Number of workers currently processing a job",
		}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mnemo_embedding_queue_depth",
			Help: "Number of embedding jobs by status",
		}, []string{"status"}),

		OldestPendingAge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mnemo_embedding_oldest_pending_age_seconds",
			Help: "Age of the oldest pending embedding job in seconds",
		}),

		MemoriesCleaned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_memories_cleaned_total",
			Help: "Total memories touched by the cleanup pass by rule",
		}, []string{"rule"}), // rule: "invalidated", "decayed", "deleted"

		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_sessions_expired_total",
			Help: "Total sessions removed by the expiry sweep",
		}),

		StaleJobsReset: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_stale_jobs_reset_total",
			Help: "Total processing jobs reclaimed by the stale-lock sweep",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordJobOutcome records one finished job attempt
func (m *Metrics) RecordJobOutcome(outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(outcome).Inc()
}

// RecordJobDuration records job processing time
func (m *Metrics) RecordJobDuration(seconds float64) {
	if m == nil {
		return
	}
	m.JobDuration.Observe(seconds)
}

// WorkerStarted marks a worker as busy
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.WorkersBusy.Inc()
}

// WorkerFinished marks a worker as idle
func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.WorkersBusy.Dec()
}

// RecordCleanup records the outcome of one memory cleanup pass
func (m *Metrics) RecordCleanup(invalidated, decayed, deleted int) {
	if m == nil {
		return
	}
	m.MemoriesCleaned.WithLabelValues("invalidated").Add(float64(invalidated))
	m.MemoriesCleaned.WithLabelValues("decayed").Add(float64(decayed))
	m.MemoriesCleaned.WithLabelValues("deleted").Add(float64(deleted))
}

// RecordSessionsExpired records sessions removed by the expiry sweep
func (m *Metrics) RecordSessionsExpired(count int) {
	if m == nil {
		return
	}
	m.SessionsExpired.Add(float64(count))
}

// RecordStaleJobsReset records jobs reclaimed by the stale-lock sweep
func (m *Metrics) RecordStaleJobsReset(count int) {
	if m == nil {
		return
	}
	m.StaleJobsReset.Add(float64(count))
}
