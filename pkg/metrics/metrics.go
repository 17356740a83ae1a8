package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector provides Prometheus metrics for the retrieval engine
type PrometheusCollector struct {
	rankingsTotal   *prometheus.CounterVec
	rankingDuration *prometheus.HistogramVec
	relevantImages  prometheus.Histogram
	degenerateDims  *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewCollector creates a new Prometheus metrics collector on its own registry
func NewCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	rankingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbir_rankings_total",
			Help: "Total number of corpus rankings by measure and status",
		},
		[]string{"measure", "status"},
	)

	rankingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cbir_ranking_duration_seconds",
			Help:    "Duration of corpus rankings by measure",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"measure"},
	)

	relevantImages := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cbir_relevance_set_size",
			Help:    "Number of relevant images used to compute a weight vector",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	degenerateDims := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cbir_degenerate_dimensions",
			Help: "Feature dimensions with zero corpus variance, by handling",
		},
		[]string{"handling"},
	)

	registry.MustRegister(rankingsTotal)
	registry.MustRegister(rankingDuration)
	registry.MustRegister(relevantImages)
	registry.MustRegister(degenerateDims)

	return &PrometheusCollector{
		rankingsTotal:   rankingsTotal,
		rankingDuration: rankingDuration,
		relevantImages:  relevantImages,
		degenerateDims:  degenerateDims,
		registry:        registry,
	}
}

// RecordRanking records the completion of a ranking
func (m *PrometheusCollector) RecordRanking(measure string, status string, elapsed time.Duration) {
	m.rankingsTotal.WithLabelValues(measure, status).Inc()
	if status == "success" {
		m.rankingDuration.WithLabelValues(measure).Observe(elapsed.Seconds())
	}
}

// RecordWeights records the size of a relevance set
func (m *PrometheusCollector) RecordWeights(relevant int) {
	m.relevantImages.Observe(float64(relevant))
}

// SetDegenerateDims sets the zero-variance dimension gauges
func (m *PrometheusCollector) SetDegenerateDims(zeroSD int, corrected int) {
	m.degenerateDims.WithLabelValues("corrected").Set(float64(corrected))
	m.degenerateDims.WithLabelValues("zeroed").Set(float64(zeroSD - corrected))
}

// Registry returns the Prometheus registry holding the engine metrics
func (m *PrometheusCollector) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics in the text exposition format
func (m *PrometheusCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
