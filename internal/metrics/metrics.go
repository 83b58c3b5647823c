// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package metrics provides Prometheus instrumentation for the ML engine:
// ingestion throughput, training runs, engine readiness, and API latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics

	IngestionPagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_pages_fetched_total",
			Help: "Total number of pages fetched from the backend data API",
		},
		[]string{"resource"},
	)

	IngestionRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_records_fetched_total",
			Help: "Total number of records fetched from the backend data API",
		},
		[]string{"resource"},
	)

	IngestionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_errors_total",
			Help: "Total number of failed ingestion fetches",
		},
		[]string{"resource"},
	)

	// Training metrics

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training runs by outcome",
		},
		[]string{"status"}, // "succeeded", "failed"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of full training runs in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
		},
	)

	// EngineReady reports per-engine readiness (1 ready, 0 not ready).
	EngineReady = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_ready",
			Help: "Whether a recommendation engine has a loaded model (1) or not (0)",
		},
		[]string{"engine"}, // "collaborative", "similarity"
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit breaker state (0 closed, 1 half-open, 2 open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// SetEngineReady records engine readiness as a gauge value.
func SetEngineReady(engine string, ready bool) {
	v := 0.0
	if ready {
		v = 1.0
	}
	EngineReady.WithLabelValues(engine).Set(v)
}

// ObserveTrainingRun records the outcome and duration of a training run.
func ObserveTrainingRun(status string, d time.Duration) {
	TrainingRuns.WithLabelValues(status).Inc()
	TrainingDuration.Observe(d.Seconds())
}
