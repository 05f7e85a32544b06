package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	fxFallbacks  prometheus.Counter
	errorsTotal  *prometheus.CounterVec
	eventsTotal  *prometheus.CounterVec
	modelLoaded  prometheus.Gauge
	latency      *prometheus.HistogramVec
	trainingLoss *prometheus.GaugeVec
	trainingRuns *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceportal_predictions_total",
				Help: "Prediction requests by outcome",
			},
			[]string{"outcome"},
		),
		fxFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "priceportal_fx_fallback_total",
				Help: "Times the fallback conversion rate was used",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceportal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceportal_prediction_events_total",
				Help: "Prediction events by stage and status",
			},
			[]string{"stage", "status"},
		),
		modelLoaded: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "priceportal_model_loaded",
				Help: "1 when model and scaler are loaded",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "priceportal_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		trainingLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "priceportal_training_loss",
				Help: "Final loss of the last training run",
			},
			[]string{"split"},
		),
		trainingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceportal_training_runs_total",
				Help: "Training runs by status",
			},
			[]string{"status"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceportal_cache_lookups_total",
				Help: "Market data cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// RecordPrediction counts a prediction by outcome (ok, not_found, ...).
func (r *Recorder) RecordPrediction(outcome string) {
	r.predictions.WithLabelValues(outcome).Inc()
}

// RecordFXFallback counts uses of the fallback conversion rate.
func (r *Recorder) RecordFXFallback() {
	r.fxFallbacks.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordEvent counts prediction events through publish and archive stages.
func (r *Recorder) RecordEvent(stage, status string) {
	r.eventsTotal.WithLabelValues(stage, status).Inc()
}

// SetModelLoaded flips the readiness gauge.
func (r *Recorder) SetModelLoaded(loaded bool) {
	if loaded {
		r.modelLoaded.Set(1)
		return
	}
	r.modelLoaded.Set(0)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTraining records the outcome and final losses of a training run.
func (r *Recorder) RecordTraining(status string, trainLoss, valLoss float64) {
	r.trainingRuns.WithLabelValues(status).Inc()
	if status == "ok" {
		r.trainingLoss.WithLabelValues("train").Set(trainLoss)
		r.trainingLoss.WithLabelValues("validation").Set(valLoss)
	}
}

// RecordCacheLookup counts cache hits and misses.
func (r *Recorder) RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}
