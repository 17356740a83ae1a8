package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_RecordRanking(t *testing.T) {
	collector := NewCollector()

	collector.RecordRanking("intensity", "success", 2*time.Millisecond)
	collector.RecordRanking("intensity", "success", time.Millisecond)
	collector.RecordRanking("combined", "error", 0)

	if got := testutil.CollectAndCount(collector.rankingsTotal); got != 2 {
		t.Errorf("expected 2 metric series (intensity/success, combined/error), got %d", got)
	}

	if got := testutil.ToFloat64(collector.rankingsTotal.WithLabelValues("intensity", "success")); got != 2 {
		t.Errorf("expected 2 intensity/success rankings, got %f", got)
	}

	// Failed rankings are not timed
	if got := testutil.CollectAndCount(collector.rankingDuration); got != 1 {
		t.Errorf("expected 1 duration series, got %d", got)
	}
}

func TestPrometheusCollector_RecordWeights(t *testing.T) {
	collector := NewCollector()

	collector.RecordWeights(3)
	collector.RecordWeights(0)

	if got := testutil.CollectAndCount(collector.relevantImages); got != 1 {
		t.Errorf("expected 1 histogram, got %d", got)
	}
}

func TestPrometheusCollector_SetDegenerateDims(t *testing.T) {
	collector := NewCollector()

	collector.SetDegenerateDims(5, 2)

	if got := testutil.ToFloat64(collector.degenerateDims.WithLabelValues("corrected")); got != 2 {
		t.Errorf("expected 2 corrected dimensions, got %f", got)
	}
	if got := testutil.ToFloat64(collector.degenerateDims.WithLabelValues("zeroed")); got != 3 {
		t.Errorf("expected 3 zeroed dimensions, got %f", got)
	}
}

func TestPrometheusCollector_WriteTextfile(t *testing.T) {
	collector := NewCollector()
	collector.RecordRanking("colorcode", "success", time.Millisecond)

	path := filepath.Join(t.TempDir(), "cbir.prom")
	if err := collector.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read metrics file: %v", err)
	}
	if !strings.Contains(string(data), `cbir_rankings_total{measure="colorcode",status="success"} 1`) {
		t.Errorf("metrics file is missing the ranking counter:\n%s", data)
	}

	if collector.Registry() == nil {
		t.Error("expected a registry")
	}
}

func TestNoopCollector(t *testing.T) {
	var c Collector = NewNoopCollector()

	// Should not panic
	c.RecordRanking("intensity", "success", time.Second)
	c.RecordWeights(4)
	c.SetDegenerateDims(1, 1)
}
