// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionRunsTotal tracks resolution passes by status
	ResolutionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "runs_total",
			Help:      "Total number of resolution passes by status",
		},
		[]string{"status"},
	)

	// ResolutionRunDuration tracks resolution pass duration in seconds
	ResolutionRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "run_duration_seconds",
			Help:      "Duration of resolution passes in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// RecordsProcessed tracks raw records processed by outcome
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "records_total",
			Help:      "Total number of raw records processed by outcome",
		},
		[]string{"record_type", "outcome"},
	)

	// EntitiesMerged tracks multi-record merges by entity kind
	EntitiesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "entities_merged_total",
			Help:      "Total number of multi-record merges by entity kind",
		},
		[]string{"record_type"},
	)

	// ReviewFlagsCreated tracks records flagged for manual review
	ReviewFlagsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "resolution",
			Name:      "review_flags_total",
			Help:      "Total number of records flagged for manual review",
		},
	)

	// FeaturesRecomputed tracks founder feature recomputations
	FeaturesRecomputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "features",
			Name:      "recomputed_total",
			Help:      "Total number of founder feature recomputations",
		},
		[]string{"status"},
	)

	// SimilarityQueries tracks similarity queries by cache outcome
	SimilarityQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "similarity",
			Name:      "queries_total",
			Help:      "Total number of similarity queries by cache outcome",
		},
		[]string{"record_type", "cache"},
	)

	// SimilarityQueryDuration tracks similarity query duration
	SimilarityQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "similarity",
			Name:      "query_duration_seconds",
			Help:      "Duration of similarity queries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks Kafka messages consumed
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordResolutionRun records one resolution pass
func RecordResolutionRun(status string, durationSeconds float64) {
	ResolutionRunsTotal.WithLabelValues(status).Inc()
	ResolutionRunDuration.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordKafkaConsume records a Kafka consume operation
func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}

// RecordSimilarityQuery records a similarity query
func RecordSimilarityQuery(recordType, cache string, durationSeconds float64) {
	SimilarityQueries.WithLabelValues(recordType, cache).Inc()
	SimilarityQueryDuration.Observe(durationSeconds)
}
