package observer

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "forensics"

// MetricsObserver exports analysis events as Prometheus metrics
type MetricsObserver struct {
	analyses        *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	degraded        *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	duration        prometheus.Histogram
	score           prometheus.Histogram
}

// NewMetricsObserver creates the collectors and registers them with reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "analyses_total",
			Help:      "Image analyses by outcome.",
		}, []string{"source", "outcome"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recommendations_total",
			Help:      "Completed analyses by recommendation.",
		}, []string{"recommendation"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "degraded_signals_total",
			Help:      "Signals that could not be computed and assumed maximum suspicion.",
		}, []string{"signal"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "image_fetches_total",
			Help:      "Remote image fetches by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of completed analyses.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tampering_score",
			Help:      "Distribution of final tampering scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}

	for _, c := range []prometheus.Collector{o.analyses, o.recommendations, o.degraded, o.fetches, o.duration, o.score} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return o, nil
}

// OnEvent handles analysis events by updating collectors
func (o *MetricsObserver) OnEvent(_ context.Context, event AnalysisEvent) {
	switch event.EventType {
	case AnalysisCompleted:
		o.analyses.WithLabelValues(event.Source, "completed").Inc()
		o.recommendations.WithLabelValues(event.Recommendation).Inc()
		for _, s := range event.DegradedSignals {
			o.degraded.WithLabelValues(s).Inc()
		}
		o.duration.Observe(event.ProcessingTime.Seconds())
		o.score.Observe(event.Score)
	case AnalysisFailed:
		o.analyses.WithLabelValues(event.Source, "failed").Inc()
	case ImageFetched:
		o.fetches.WithLabelValues("ok").Inc()
	case ImageFetchFailed:
		o.fetches.WithLabelValues("failed").Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}
