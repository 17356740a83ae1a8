// Package extract computes the intensity and color code histograms of images.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"math"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ken/image_retrieval/pkg/core/feature"
)

// DefaultExtension is the file extension of corpus images
const DefaultExtension = ".jpg"

var (
	// ErrEmptyImage is returned for an image without pixels
	ErrEmptyImage = errors.New("image has no pixels")
)

// Result holds the histograms of one image. Index 0 of both is unused.
type Result struct {
	Intensity []int
	ColorCode []int
	Size      int
}

// Corpus holds the histograms and pixel counts of images 1..N
type Corpus struct {
	Intensity feature.Histogram
	ColorCode feature.Histogram
	Sizes     feature.ImageSizes
}

// IntensityBin maps an 8-bit RGB pixel to its intensity bin (1..25).
// Intensity 0.299R + 0.587G + 0.114B is cut into bands of 10; everything
// from 240 up shares bin 25.
func IntensityBin(r, g, b uint8) int {
	intensity := int(math.Floor(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
	band := intensity / 10
	if band >= feature.IntensityBins-1 {
		return feature.IntensityBins
	}
	return band + 1
}

// ColorCodeBin maps an 8-bit RGB pixel to its color code bin (1..64). The
// code concatenates the two most significant bits of R, G and B.
func ColorCodeBin(r, g, b uint8) int {
	code := int(r>>6)<<4 | int(g>>6)<<2 | int(b>>6)
	return code + 1
}

// Extract computes both histograms of img
func Extract(img image.Image) (Result, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return Result{}, ErrEmptyImage
	}

	res := Result{
		Intensity: make([]int, feature.IntensityBins+1),
		ColorCode: make([]int, feature.ColorCodeBins+1),
		Size:      bounds.Dx() * bounds.Dy(),
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			res.Intensity[IntensityBin(c.R, c.G, c.B)]++
			res.ColorCode[ColorCodeBin(c.R, c.G, c.B)]++
		}
	}
	return res, nil
}

// ImagePath returns the file of image id inside dir
func ImagePath(dir string, id feature.ImageID, ext string) string {
	return filepath.Join(dir, strconv.Itoa(int(id))+ext)
}

// File decodes and extracts a single image file
func File(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	res, err := Extract(img)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Extractor processes a directory of images named 1<ext> .. N<ext>
type Extractor struct {
	Workers   int
	Extension string

	logger *zap.Logger
}

// NewExtractor creates an extractor running up to workers decodes at once
func NewExtractor(workers int, logger *zap.Logger) *Extractor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{Workers: workers, Extension: DefaultExtension, logger: logger}
}

// Directory extracts images 1..n of dir. Any failing image fails the whole
// run; no partial corpus is returned.
func (e *Extractor) Directory(ctx context.Context, dir string, n int) (*Corpus, error) {
	corpus := &Corpus{
		Intensity: feature.NewHistogram(feature.Intensity, n),
		ColorCode: feature.NewHistogram(feature.ColorCode, n),
		Sizes:     make(feature.ImageSizes, n+1),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)
	for i := 1; i <= n; i++ {
		id := feature.ImageID(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := ImagePath(dir, id, e.Extension)
			res, err := File(path)
			if err != nil {
				return err
			}
			// each goroutine owns row id
			copy(corpus.Intensity[id], res.Intensity)
			copy(corpus.ColorCode[id], res.ColorCode)
			corpus.Sizes[id] = res.Size

			e.logger.Debug("Extracted image histograms", zap.String("path", path), zap.Int("pixels", res.Size))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("Extracted corpus", zap.String("dir", dir), zap.Int("images", n))
	return corpus, nil
}

// Sizes reads only the image headers of 1..n in dir and returns their pixel counts
func (e *Extractor) Sizes(dir string, n int) (feature.ImageSizes, error) {
	sizes := make(feature.ImageSizes, n+1)
	for i := 1; i <= n; i++ {
		path := ImagePath(dir, feature.ImageID(i), e.Extension)
		cfg, err := decodeConfig(path)
		if err != nil {
			return nil, err
		}
		sizes[i] = cfg.Width * cfg.Height
	}
	if err := sizes.Validate(); err != nil {
		return nil, err
	}
	return sizes, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to read image header %s: %w", path, err)
	}
	return cfg, nil
}
