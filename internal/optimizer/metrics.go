package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks optimization requests by variant and outcome.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_optimizer_requests_total",
		Help: "Total number of optimization requests by variant and outcome",
	}, []string{"variant", "outcome"}) // variant: geo, online, deals; outcome: ok, empty, invalid, error

	// optimizationDuration tracks the end-to-end time of an optimization.
	optimizationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_optimizer_duration_seconds",
		Help:    "Time taken for optimization by variant",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"variant"})

	// basketSize tracks the distribution of basket sizes.
	basketSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_optimizer_basket_items_count",
		Help:    "Number of items in optimization requests",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200},
	})

	// storesSearched tracks the number of stores with at least one match.
	storesSearched = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_optimizer_stores_searched_count",
		Help:    "Number of stores with at least one matching price by variant",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500},
	}, []string{"variant"})

	// observationsSkipped tracks malformed or out-of-scope price rows.
	observationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_optimizer_observations_skipped_total",
		Help: "Price observations dropped during aggregation by variant",
	}, []string{"variant"})

	// fetchAttempts tracks price source calls, including retries.
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_optimizer_fetch_attempts_total",
		Help: "Price source fetch attempts by outcome",
	}, []string{"outcome"}) // ok, error, rejected

	// fetchDuration tracks the time spent in the price source.
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basket_optimizer_fetch_duration_seconds",
		Help:    "Time taken by a single price source fetch",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// breakerState tracks the circuit breaker state (0 closed, 1 open, 2 half-open).
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "basket_optimizer_circuit_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	}, []string{"name"})
)

// MetricsRecorder provides methods to record optimizer metrics.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordRequest records the outcome of an optimization request.
func (m *MetricsRecorder) RecordRequest(variant, outcome string) {
	requestsTotal.WithLabelValues(variant, outcome).Inc()
}

// RecordOptimizationDuration records the duration of an optimization operation.
func (m *MetricsRecorder) RecordOptimizationDuration(variant string, duration time.Duration) {
	optimizationDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

// RecordBasketSize records the size of a basket.
func (m *MetricsRecorder) RecordBasketSize(size int) {
	basketSize.Observe(float64(size))
}

// RecordStoresSearched records the number of stores evaluated.
func (m *MetricsRecorder) RecordStoresSearched(variant string, count int) {
	storesSearched.WithLabelValues(variant).Observe(float64(count))
}

// RecordSkipped records dropped observations.
func (m *MetricsRecorder) RecordSkipped(variant string, count int) {
	if count > 0 {
		observationsSkipped.WithLabelValues(variant).Add(float64(count))
	}
}

// RecordFetch records a single price source attempt.
func (m *MetricsRecorder) RecordFetch(outcome string, duration time.Duration) {
	fetchAttempts.WithLabelValues(outcome).Inc()
	if outcome != "rejected" {
		fetchDuration.Observe(duration.Seconds())
	}
}

// RecordBreakerState records a circuit breaker state change.
func (m *MetricsRecorder) RecordBreakerState(name string, state CircuitBreakerState) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
