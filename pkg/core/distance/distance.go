package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/ken/image_retrieval/pkg/core/feature"
)

// MeasureKind represents the type of distance measure
type MeasureKind string

const (
	// IntensityManhattan is the L1 distance on size-normalized intensity counts
	IntensityManhattan MeasureKind = "intensity"

	// ColorCodeManhattan is the L1 distance on size-normalized color code counts
	ColorCodeManhattan MeasureKind = "colorcode"

	// WeightedCombined is the weighted L1 distance on the standardized feature matrix
	WeightedCombined MeasureKind = "combined"
)

var (
	// ErrUnknownMeasure is returned for an unsupported measure name
	ErrUnknownMeasure = errors.New("unknown distance measure")
)

// Measure computes the distance between the query image and any other image
// of the corpus it was built for.
type Measure interface {
	// Distance calculates the distance between two images of the corpus
	Distance(query, other feature.ImageID) float64

	// Corpus returns the number of images the measure covers
	Corpus() int

	// Name returns the kind of the measure
	Name() MeasureKind
}

// ParseMeasure validates a measure name
func ParseMeasure(name string) (MeasureKind, error) {
	switch k := MeasureKind(name); k {
	case IntensityManhattan, ColorCodeManhattan, WeightedCombined:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMeasure, name)
	}
}

// HistogramKind maps a raw measure to the histogram it reads
func (k MeasureKind) HistogramKind() (feature.Kind, bool) {
	switch k {
	case IntensityManhattan:
		return feature.Intensity, true
	case ColorCodeManhattan:
		return feature.ColorCode, true
	default:
		return 0, false
	}
}

// RawManhattanDistance implements the L1 distance between raw histogram rows,
// each divided by the pixel count of its image.
type RawManhattanDistance struct {
	kind  feature.Kind
	hist  feature.Histogram
	sizes feature.ImageSizes
}

// RawManhattan creates the raw measure for one histogram kind
func RawManhattan(kind feature.Kind, hist feature.Histogram, sizes feature.ImageSizes) (*RawManhattanDistance, error) {
	if err := hist.Validate(kind, sizes.Corpus()); err != nil {
		return nil, err
	}
	if err := sizes.Validate(); err != nil {
		return nil, err
	}
	return &RawManhattanDistance{kind: kind, hist: hist, sizes: sizes}, nil
}

func (d *RawManhattanDistance) Distance(query, other feature.ImageID) float64 {
	q, o := d.hist[query], d.hist[other]
	qSize, oSize := float64(d.sizes[query]), float64(d.sizes[other])

	var sum float64
	for b := 1; b < len(q); b++ {
		sum += math.Abs(float64(q[b])/qSize - float64(o[b])/oSize)
	}
	return sum
}

func (d *RawManhattanDistance) Corpus() int {
	return d.hist.Corpus()
}

func (d *RawManhattanDistance) Name() MeasureKind {
	if d.kind == feature.Intensity {
		return IntensityManhattan
	}
	return ColorCodeManhattan
}

// WeightedManhattanDistance implements the weighted L1 distance on the
// standardized feature matrix.
type WeightedManhattanDistance struct {
	features feature.Matrix
	weights  feature.Weights
}

// Weighted creates the combined measure. The weight vector must cover every
// dimension of the matrix.
func Weighted(m feature.Matrix, w feature.Weights) (*WeightedManhattanDistance, error) {
	if w.Dims() != m.Dims() {
		return nil, fmt.Errorf("%w: %d weights for %d dimensions", feature.ErrDimensionMismatch, w.Dims(), m.Dims())
	}
	return &WeightedManhattanDistance{features: m, weights: w}, nil
}

func (d *WeightedManhattanDistance) Distance(query, other feature.ImageID) float64 {
	q, o := d.features[query], d.features[other]

	var sum float64
	for j := 1; j < len(q); j++ {
		sum += d.weights[j] * math.Abs(q[j]-o[j])
	}
	return sum
}

func (d *WeightedManhattanDistance) Corpus() int {
	return d.features.Rows()
}

func (d *WeightedManhattanDistance) Name() MeasureKind {
	return WeightedCombined
}
