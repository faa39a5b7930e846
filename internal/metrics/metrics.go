// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropwise_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropwise_prediction_duration_seconds",
			Help:    "Time spent inside a model predict call",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"model"},
	)

	PredictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropwise_prediction_errors_total",
			Help: "Predictions that returned an error",
		},
		[]string{"model"},
	)

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropwise_training_duration_seconds",
			Help:    "Time spent fitting a model",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	ModelLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cropwise_model_loaded",
			Help: "1 when the model is loaded and serving, 0 otherwise",
		},
		[]string{"model"},
	)

	PlannerCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cropwise_planner_candidate_sequences",
			Help:    "Number of crop sequences scored per plan request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePrediction records a predict call and whether it failed.
func ObservePrediction(model string, start time.Time, err error) {
	PredictionDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		PredictionErrors.WithLabelValues(model).Inc()
	}
}

func ObserveTraining(model string, d time.Duration) {
	TrainingDuration.WithLabelValues(model).Observe(d.Seconds())
}

func SetModelLoaded(model string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	ModelLoaded.WithLabelValues(model).Set(v)
}
