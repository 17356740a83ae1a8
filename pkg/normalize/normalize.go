// Package normalize turns raw image histograms into one standardized feature
// matrix. Every count is divided by its image's pixel count, then each
// dimension is centered on the corpus mean and scaled by the corpus standard
// deviation.
package normalize

import (
	"fmt"
	"math"

	"github.com/ken/image_retrieval/pkg/core/feature"
)

// Stat holds the statistics of one feature dimension
type Stat struct {
	Mean float64
	SD   float64

	// Corrected is set when a zero SD was replaced by half the smallest positive SD
	Corrected bool
}

// Report summarizes the degenerate dimensions met while computing statistics
type Report struct {
	Dims      int     // Number of dimensions examined
	ZeroSD    int     // Dimensions whose standard deviation was exactly 0
	Corrected int     // Zero-SD dimensions with a non-zero mean that got 0.5*MinSD
	MinSD     float64 // Smallest strictly positive SD, 0 if there is none
}

// Normalize builds the standardized feature matrix of the corpus. Intensity
// bins fill dimensions 1..25, color code bins dimensions 26..89. The inputs
// are not modified.
func Normalize(intensity, colorCode feature.Histogram, sizes feature.ImageSizes) (feature.Matrix, Report, error) {
	m, err := SizeNormalize(intensity, colorCode, sizes)
	if err != nil {
		return nil, Report{}, err
	}
	stats, report := Stats(m)
	return Standardize(m, stats), report, nil
}

// SizeNormalize concatenates both histograms per image and divides every
// count by the image's pixel count.
func SizeNormalize(intensity, colorCode feature.Histogram, sizes feature.ImageSizes) (feature.Matrix, error) {
	n := sizes.Corpus()
	if err := sizes.Validate(); err != nil {
		return nil, err
	}
	if err := intensity.Validate(feature.Intensity, n); err != nil {
		return nil, fmt.Errorf("intensity histogram: %w", err)
	}
	if err := colorCode.Validate(feature.ColorCode, n); err != nil {
		return nil, fmt.Errorf("color code histogram: %w", err)
	}

	ib, cb := intensity.Bins(), colorCode.Bins()
	m := feature.NewMatrix(n, ib+cb)
	for i := 1; i <= n; i++ {
		size := float64(sizes[i])
		for b := 1; b <= ib; b++ {
			m[i][b] = float64(intensity[i][b]) / size
		}
		for b := 1; b <= cb; b++ {
			m[i][ib+b] = float64(colorCode[i][b]) / size
		}
	}
	return m, nil
}

// Stats computes the mean (divided by the row count) and the standard
// deviation (divided by the row count minus one) of every dimension of m.
//
// A dimension with SD 0 but a non-zero mean gets half the smallest positive
// SD of the matrix, so it still contributes after standardization. A
// dimension that is 0 everywhere keeps SD 0. With fewer than two rows the SD
// is undefined and reported as 0.
func Stats(m feature.Matrix) ([]Stat, Report) {
	rows, dims := m.Rows(), m.Dims()
	stats := make([]Stat, dims+1)
	report := Report{Dims: dims}
	if rows == 0 {
		return stats, report
	}

	for d := 1; d <= dims; d++ {
		var sum float64
		for i := 1; i <= rows; i++ {
			sum += m[i][d]
		}
		stats[d].Mean = sum / float64(rows)
	}

	minSD := math.MaxFloat64
	var zero []int
	for d := 1; d <= dims; d++ {
		if rows > 1 {
			var sq float64
			for i := 1; i <= rows; i++ {
				diff := m[i][d] - stats[d].Mean
				sq += diff * diff
			}
			stats[d].SD = math.Sqrt(sq / float64(rows-1))
		}

		if stats[d].SD == 0 {
			zero = append(zero, d)
		} else if stats[d].SD < minSD {
			minSD = stats[d].SD
		}
	}

	report.ZeroSD = len(zero)
	if minSD == math.MaxFloat64 {
		// nothing to borrow a scale from
		return stats, report
	}
	report.MinSD = minSD

	for _, d := range zero {
		if stats[d].Mean != 0 {
			stats[d].SD = 0.5 * minSD
			stats[d].Corrected = true
			report.Corrected++
		}
	}
	return stats, report
}

// Standardize returns (m - mean) / SD per dimension. Cells whose result is
// undefined because the SD is still 0 are set to 0.
func Standardize(m feature.Matrix, stats []Stat) feature.Matrix {
	out := feature.NewMatrix(m.Rows(), m.Dims())
	for i := 1; i <= m.Rows(); i++ {
		for d := 1; d <= m.Dims(); d++ {
			v := (m[i][d] - stats[d].Mean) / stats[d].SD
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[i][d] = v
		}
	}
	return out
}
