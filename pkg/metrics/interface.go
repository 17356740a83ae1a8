package metrics

import "time"

// Collector is the interface for metrics collection.
// Implementations are the Prometheus-backed collector and the no-op collector.
type Collector interface {
	// RecordRanking counts one ranking of the given measure and its outcome
	RecordRanking(measure string, status string, elapsed time.Duration)

	// RecordWeights records the size of the relevance set used for a weight vector
	RecordWeights(relevant int)

	// SetDegenerateDims reports how many dimensions had zero corpus variance
	// and how many of them were corrected
	SetDegenerateDims(zeroSD int, corrected int)
}
