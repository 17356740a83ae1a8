package feature

import (
	"errors"
	"fmt"
)

const (
	// DefaultCorpusSize is the number of images in the reference corpus
	DefaultCorpusSize = 100

	// IntensityBins is the number of used intensity bins (bin 25 collects the brightest pixels)
	IntensityBins = 25

	// ColorCodeBins is the number of used 6-bit color code bins
	ColorCodeBins = 64

	// FeatureDims is the number of used dimensions of a combined feature row
	FeatureDims = IntensityBins + ColorCodeBins

	// UniformWeight is the weight of every dimension before any relevance feedback.
	// It stays 1/89 even when the bin counts are configured differently.
	UniformWeight = 1.0 / 89
)

var (
	// ErrInvalidQuery is returned when a query id is outside [1, N] or has no row
	ErrInvalidQuery = errors.New("invalid query image")

	// ErrInvalidImageSize is returned when an image has a non-positive pixel count
	ErrInvalidImageSize = errors.New("invalid image size")

	// ErrDimensionMismatch is returned when rows or columns don't line up
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// ImageID identifies an image of the corpus. Valid ids are 1..N, 0 is reserved.
type ImageID int

// Kind selects one of the two raw histograms
type Kind int

const (
	// Intensity is the 25-bin luminance histogram
	Intensity Kind = iota + 1

	// ColorCode is the 64-bin histogram of 6-bit RGB codes
	ColorCode
)

// String returns the name of the histogram kind
func (k Kind) String() string {
	switch k {
	case Intensity:
		return "intensity"
	case ColorCode:
		return "colorcode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Bins returns the number of used bins for the kind
func (k Kind) Bins() int {
	switch k {
	case Intensity:
		return IntensityBins
	case ColorCode:
		return ColorCodeBins
	default:
		return 0
	}
}

// ParseKind maps a histogram name to its Kind
func ParseKind(name string) (Kind, error) {
	switch name {
	case "intensity":
		return Intensity, nil
	case "colorcode", "color":
		return ColorCode, nil
	default:
		return 0, fmt.Errorf("unknown histogram kind %q", name)
	}
}

// ImageSizes maps an image id to its pixel count. Index 0 is unused.
type ImageSizes []int

// Corpus returns the number of images described by the table
func (s ImageSizes) Corpus() int {
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}

// Validate checks that every image of the corpus has a positive size
func (s ImageSizes) Validate() error {
	for id := 1; id < len(s); id++ {
		if s[id] <= 0 {
			return fmt.Errorf("%w: image %d has size %d", ErrInvalidImageSize, id, s[id])
		}
	}
	return nil
}

// Histogram holds one row of bin counts per image. Row 0 and column 0 are
// placeholders so that row i belongs to image i and column b to bin b.
type Histogram [][]int

// NewHistogram allocates an all-zero histogram for n images of the given kind
func NewHistogram(kind Kind, n int) Histogram {
	h := make(Histogram, n+1)
	for i := range h {
		h[i] = make([]int, kind.Bins()+1)
	}
	return h
}

// Corpus returns the number of images in the histogram
func (h Histogram) Corpus() int {
	if len(h) == 0 {
		return 0
	}
	return len(h) - 1
}

// Bins returns the number of used bins per row
func (h Histogram) Bins() int {
	if len(h) == 0 || len(h[0]) == 0 {
		return 0
	}
	return len(h[0]) - 1
}

// Validate checks the histogram shape against the kind and corpus size
func (h Histogram) Validate(kind Kind, n int) error {
	if h.Corpus() != n {
		return fmt.Errorf("%w: %s histogram has %d images, want %d", ErrDimensionMismatch, kind, h.Corpus(), n)
	}
	for i, row := range h {
		if len(row) != kind.Bins()+1 {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrDimensionMismatch, kind, i, len(row), kind.Bins()+1)
		}
	}
	return nil
}

// Clone returns a deep copy of the histogram
func (h Histogram) Clone() Histogram {
	out := make(Histogram, len(h))
	for i, row := range h {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Matrix is a real-valued feature matrix. Row 0 and column 0 are unused.
type Matrix [][]float64

// NewMatrix allocates a zero matrix with rows 0..n and columns 0..dims
func NewMatrix(n, dims int) Matrix {
	m := make(Matrix, n+1)
	for i := range m {
		m[i] = make([]float64, dims+1)
	}
	return m
}

// Rows returns the number of used rows
func (m Matrix) Rows() int {
	if len(m) == 0 {
		return 0
	}
	return len(m) - 1
}

// Dims returns the number of used dimensions
func (m Matrix) Dims() int {
	if len(m) == 0 || len(m[0]) == 0 {
		return 0
	}
	return len(m[0]) - 1
}

// Row returns the feature row of an image
func (m Matrix) Row(id ImageID) ([]float64, error) {
	if err := m.CheckID(id); err != nil {
		return nil, err
	}
	return m[id], nil
}

// CheckID reports whether id addresses a used row of the matrix
func (m Matrix) CheckID(id ImageID) error {
	if id < 1 || int(id) > m.Rows() {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidQuery, id, m.Rows())
	}
	return nil
}

// Clone returns a deep copy of the matrix
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Select builds a sub-matrix holding copies of the given rows in order.
// Row 0 of the result is a zero placeholder.
func (m Matrix) Select(ids []ImageID) (Matrix, error) {
	out := NewMatrix(len(ids), m.Dims())
	for i, id := range ids {
		row, err := m.Row(id)
		if err != nil {
			return nil, err
		}
		copy(out[i+1], row)
	}
	return out, nil
}

// Weights is a per-dimension weight vector. Index 0 is unused.
type Weights []float64

// Uniform returns a vector of dims weights, each UniformWeight
func Uniform(dims int) Weights {
	w := make(Weights, dims+1)
	for d := 1; d <= dims; d++ {
		w[d] = UniformWeight
	}
	return w
}

// Dims returns the number of used dimensions
func (w Weights) Dims() int {
	if len(w) == 0 {
		return 0
	}
	return len(w) - 1
}

// Sum adds up the used dimensions
func (w Weights) Sum() float64 {
	var sum float64
	for d := 1; d < len(w); d++ {
		sum += w[d]
	}
	return sum
}

// RankOrder lists image ids by position. Position 0 is unused.
type RankOrder []ImageID

// Identity returns the ascending-id order of an n-image corpus
func Identity(n int) RankOrder {
	order := make(RankOrder, n+1)
	for i := 1; i <= n; i++ {
		order[i] = ImageID(i)
	}
	return order
}

// IDs returns the ranked ids without the unused leading position
func (o RankOrder) IDs() []ImageID {
	if len(o) == 0 {
		return nil
	}
	return append([]ImageID(nil), o[1:]...)
}
