// Package metrics expone los contadores Prometheus del motor de patrones y matches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ThoughtsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindmatch_thoughts_recorded_total",
			Help: "Thoughts persisted, by whether a classification was available",
		},
		[]string{"classified"},
	)

	PatternIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindmatch_pattern_increments_total",
			Help: "Pattern counter increments applied, by cell kind",
		},
		[]string{"kind"}, // "topic", "sentiment"
	)

	AggregationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mindmatch_aggregation_failures_total",
			Help: "Thoughts whose pattern update was rejected by the store",
		},
	)

	ThoughtsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mindmatch_thoughts_rate_limited_total",
			Help: "Thoughts rejected by the per-user publication limiter",
		},
	)

	ClassificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindmatch_classification_failures_total",
			Help: "Classification attempts that did not produce a result",
		},
		[]string{"reason"}, // "timeout", "rejected", "error"
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mindmatch_rank_duration_seconds",
			Help:    "Time spent scoring and sorting a candidate pool",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mindmatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	StoreConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindmatch_store_conflict_retries_total",
			Help: "Optimistic transaction retries in pattern stores",
		},
		[]string{"store"},
	)
)
