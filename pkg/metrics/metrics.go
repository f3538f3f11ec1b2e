// Package metrics provides Prometheus metrics for the representation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRunsTotal tracks migration and sync runs by outcome
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hope_sync",
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Total number of migration and sync runs by status",
		},
		[]string{"job", "business_area", "status"},
	)

	// JobRunDuration tracks run duration in seconds
	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hope_sync",
			Subsystem: "job",
			Name:      "run_duration_seconds",
			Help:      "Duration of migration and sync runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"job", "business_area"},
	)

	// RepresentationChanges tracks rows written per entity type and action
	RepresentationChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hope_sync",
			Subsystem: "representation",
			Name:      "changes_total",
			Help:      "Total number of representation rows created, updated, deleted or assigned",
		},
		[]string{"entity_type", "action"},
	)

	// RepresentationsSkipped tracks records skipped because a required representation was missing
	RepresentationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hope_sync",
			Subsystem: "representation",
			Name:      "skipped_total",
			Help:      "Total number of records skipped for a missing representation",
		},
		[]string{"entity_type"},
	)

	// BatchDuration tracks one committed batch
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hope_sync",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Duration of batch transactions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// LockAcquireFailures tracks business areas skipped because another run held the lock
	LockAcquireFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hope_sync",
			Subsystem: "lock",
			Name:      "acquire_failures_total",
			Help:      "Total number of business-area lock acquisition failures",
		},
		[]string{"business_area"},
	)

	// KafkaMessagesPublished tracks representation events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hope_sync",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of representation events published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// SchedulerTicks tracks scheduler poll cycles
	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hope_sync",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler poll cycles",
		},
	)
)

// RecordJobRun records a finished run
func RecordJobRun(job, businessArea, status string, durationSeconds float64) {
	JobRunsTotal.WithLabelValues(job, businessArea, status).Inc()
	JobRunDuration.WithLabelValues(job, businessArea).Observe(durationSeconds)
}

// RecordChange records one representation write
func RecordChange(entityType, action string) {
	RepresentationChanges.WithLabelValues(entityType, action).Inc()
}

// RecordSkipped records records a run skipped for a missing representation
func RecordSkipped(entityType string, count int) {
	RepresentationsSkipped.WithLabelValues(entityType).Add(float64(count))
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, count int) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Add(float64(count))
}
