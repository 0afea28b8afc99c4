// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CleansingJobsTotal tracks cleansing jobs by terminal status
	CleansingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cleansing",
			Name:      "jobs_total",
			Help:      "Total number of cleansing jobs by status",
		},
		[]string{"status"},
	)

	// CleansingJobDuration tracks how long a cleansing job scan takes
	CleansingJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "cleansing",
			Name:      "job_duration_seconds",
			Help:      "Duration of cleansing jobs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// PairsEvaluatedTotal tracks source x target pairs run through the cascade
	PairsEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "pairs_evaluated_total",
			Help:      "Total number of record pairs evaluated by the matcher cascade",
		},
	)

	// MatchesTotal tracks accepted matches by type and whether they cleared the job threshold
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "matches_total",
			Help:      "Total number of matches accepted by a matcher",
		},
		[]string{"match_type", "persisted"},
	)

	// OracleRequestsTotal tracks semantic oracle calls by provider and outcome
	OracleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oracle",
			Name:      "requests_total",
			Help:      "Total number of semantic oracle requests",
		},
		[]string{"provider", "status"},
	)

	// OracleRequestDuration tracks semantic oracle latency
	OracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "oracle",
			Name:      "request_duration_seconds",
			Help:      "Duration of semantic oracle requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// OracleFailuresTotal tracks pairs where the semantic matcher degraded to no match
	OracleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "oracle_failures_total",
			Help:      "Total number of semantic comparisons that failed and produced no match",
		},
		[]string{"reason"},
	)

	// OracleCacheTotal tracks oracle completion cache lookups
	OracleCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oracle",
			Name:      "cache_lookups_total",
			Help:      "Total number of oracle completion cache lookups",
		},
		[]string{"result"},
	)

	// EventsPublishedTotal tracks job events published to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// GraphProjectionsTotal tracks duplicate graph projections written to Neo4j
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of job projections written to the duplicate graph",
		},
		[]string{"status"},
	)
)

// RecordJob records a finished cleansing job
func RecordJob(status string, durationSeconds float64) {
	CleansingJobsTotal.WithLabelValues(status).Inc()
	CleansingJobDuration.Observe(durationSeconds)
}

// RecordMatch records an accepted match
func RecordMatch(matchType string, persisted bool) {
	label := "false"
	if persisted {
		label = "true"
	}
	MatchesTotal.WithLabelValues(matchType, label).Inc()
}

// RecordOracleRequest records a semantic oracle call
func RecordOracleRequest(provider, status string, durationSeconds float64) {
	OracleRequestsTotal.WithLabelValues(provider, status).Inc()
	OracleRequestDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordOracleFailure records a semantic comparison that degraded to no match
func RecordOracleFailure(reason string) {
	OracleFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordPublish records a Kafka write of count messages
func RecordPublish(topic string, err error, count int) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublishedTotal.WithLabelValues(topic, status).Add(float64(count))
}
