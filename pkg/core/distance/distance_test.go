package distance

import (
	"errors"
	"testing"

	"github.com/ken/image_retrieval/pkg/core/feature"
)

func TestRawManhattanDistance(t *testing.T) {
	h := feature.NewHistogram(feature.Intensity, 2)
	h[1][1], h[1][2] = 50, 50
	h[2][1], h[2][3] = 100, 100
	sizes := feature.ImageSizes{0, 100, 200}

	metric, err := RawManhattan(feature.Intensity, h, sizes)
	if err != nil {
		t.Fatalf("Failed to create measure: %v", err)
	}

	// Expected distance: |0.5-0.5| + |0.5-0| + |0-0.5| = 1.0
	dist := metric.Distance(1, 2)
	if dist < 0.999 || dist > 1.001 {
		t.Errorf("Expected distance to be 1.0, got %f", dist)
	}

	if d := metric.Distance(2, 2); d != 0 {
		t.Errorf("Expected self distance 0, got %f", d)
	}

	if metric.Name() != IntensityManhattan {
		t.Errorf("Expected name %s, got %s", IntensityManhattan, metric.Name())
	}
	if metric.Corpus() != 2 {
		t.Errorf("Expected corpus of 2, got %d", metric.Corpus())
	}
}

func TestRawManhattanRejectsBadInput(t *testing.T) {
	h := feature.NewHistogram(feature.ColorCode, 2)

	if _, err := RawManhattan(feature.ColorCode, h, feature.ImageSizes{0, 10, 0}); !errors.Is(err, feature.ErrInvalidImageSize) {
		t.Errorf("Expected ErrInvalidImageSize, got %v", err)
	}
	if _, err := RawManhattan(feature.Intensity, h, feature.ImageSizes{0, 10, 10}); !errors.Is(err, feature.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := RawManhattan(feature.ColorCode, h, feature.ImageSizes{0, 10}); !errors.Is(err, feature.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch for corpus size, got %v", err)
	}
}

func TestWeightedDistance(t *testing.T) {
	m := feature.Matrix{
		{0, 0, 0, 0},
		{0, 1.0, 2.0, 3.0},
		{0, 4.0, 5.0, 6.0},
	}
	w := feature.Weights{0, 0.5, 0.25, 0.25}

	metric, err := Weighted(m, w)
	if err != nil {
		t.Fatalf("Failed to create measure: %v", err)
	}

	// Expected distance: 0.5*3 + 0.25*3 + 0.25*3 = 3.0
	if dist := metric.Distance(1, 2); dist != 3.0 {
		t.Errorf("Expected distance to be 3.0, got %f", dist)
	}
	if metric.Name() != WeightedCombined {
		t.Errorf("Expected name %s, got %s", WeightedCombined, metric.Name())
	}

	if _, err := Weighted(m, feature.Weights{0, 1}); !errors.Is(err, feature.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		name     string
		expected MeasureKind
		hist     feature.Kind
		raw      bool
		wantErr  bool
	}{
		{"intensity", IntensityManhattan, feature.Intensity, true, false},
		{"colorcode", ColorCodeManhattan, feature.ColorCode, true, false},
		{"combined", WeightedCombined, 0, false, false},
		{"euclidean", "", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := ParseMeasure(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownMeasure) {
					t.Errorf("Expected ErrUnknownMeasure for %s, got %v", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to parse measure: %v", err)
			}
			if kind != tt.expected {
				t.Errorf("Expected measure %s, got %s", tt.expected, kind)
			}

			hist, raw := kind.HistogramKind()
			if raw != tt.raw || hist != tt.hist {
				t.Errorf("Expected histogram (%v, %v), got (%v, %v)", tt.hist, tt.raw, hist, raw)
			}
		})
	}
}
