package metrics

import "time"

// NoopCollector is a no-op implementation used when metrics are disabled
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (n *NoopCollector) RecordRanking(measure string, status string, elapsed time.Duration) {}

func (n *NoopCollector) RecordWeights(relevant int) {}

func (n *NoopCollector) SetDegenerateDims(zeroSD int, corrected int) {}
